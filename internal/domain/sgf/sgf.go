package sgf

// GameTree is one SGF tree: the main line of nodes plus variations.
type GameTree struct {
	Nodes    []Node
	Children []*GameTree
}

// Node holds SGF properties such as B[pd], W[dd] or C[...]. A property may repeat (AB[aa][bb]).
type Node struct {
	Properties map[string][]string
}

type SGF struct {
	Root *GameTree
}

func NewNode(key string, values ...string) Node {
	n := Node{Properties: make(map[string][]string)}
	n.Set(key, values...)
	return n
}

// Set replaces every value of key.
func (n Node) Set(key string, values ...string) {
	n.Properties[key] = append([]string(nil), values...)
}

// Append extends the main line.
func (t *GameTree) Append(nodes ...Node) {
	t.Nodes = append(t.Nodes, nodes...)
}
