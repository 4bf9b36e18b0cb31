package game

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"goban/internal/domain/game"
	"goban/internal/domain/sgf"
)

// MaxSgfBoardSize is the largest board SGF point notation can address.
const MaxSgfBoardSize = 52

const sgfLetters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// fixed order of root properties, anything else follows alphabetically
var orderedKeys = []string{"FF", "GM", "CA", "AP", "SZ", "DT", "RU", "C", "B", "W"}

func PrepareSgfFile(boardSize int, startedAt time.Time) sgf.SGF {
	root := sgf.NewNode("FF", "4")
	root.Set("GM", "1")
	root.Set("CA", "UTF-8")
	root.Set("AP", "goban")
	root.Set("SZ", strconv.Itoa(boardSize))
	root.Set("DT", startedAt.UTC().Format(time.DateOnly))

	return sgf.SGF{Root: &sgf.GameTree{Nodes: []sgf.Node{root}}}
}

func AddMovesToSgf(tree *sgf.GameTree, moves []game.Move) {
	for _, move := range moves {
		value := ""
		if !move.IsPass() {
			value = sgfPoint(*move.Position)
		}
		tree.Append(sgf.NewNode(sgfColor(move.Color), value))
	}
}

// BuildRecord renders the whole running game as SGF text.
func BuildRecord(boardSize int, startedAt time.Time, moves []game.Move) string {
	record := PrepareSgfFile(boardSize, startedAt)
	AddMovesToSgf(record.Root, moves)
	return SerializeSGF(&record)
}

func SerializeSGF(s *sgf.SGF) string {
	var builder strings.Builder
	builder.WriteString("(")
	serializeGameTree(&builder, s.Root)
	builder.WriteString(")")
	return builder.String()
}

func serializeGameTree(builder *strings.Builder, tree *sgf.GameTree) {
	for _, node := range tree.Nodes {
		builder.WriteString(";")

		used := make(map[string]bool)
		for _, key := range orderedKeys {
			if values, ok := node.Properties[key]; ok {
				used[key] = true
				writeProperty(builder, key, values)
			}
		}

		for _, key := range slices.Sorted(maps.Keys(node.Properties)) {
			if !used[key] {
				writeProperty(builder, key, node.Properties[key])
			}
		}
	}

	for _, child := range tree.Children {
		builder.WriteString("(")
		serializeGameTree(builder, child)
		builder.WriteString(")")
	}
}

func writeProperty(builder *strings.Builder, key string, values []string) {
	builder.WriteString(key)
	for _, v := range values {
		builder.WriteString(fmt.Sprintf("[%s]", escapeSgfText(v)))
	}
}

func escapeSgfText(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	return strings.ReplaceAll(v, "]", `\]`)
}

func sgfPoint(pos game.Position) string {
	if pos.X < 0 || pos.Y < 0 || pos.X >= len(sgfLetters) || pos.Y >= len(sgfLetters) {
		return ""
	}
	return string(sgfLetters[pos.X]) + string(sgfLetters[pos.Y])
}

func sgfColor(c game.Color) string {
	if c == game.White {
		return "W"
	}
	return "B"
}
