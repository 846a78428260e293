package colorize

import (
	"bytes"
	"fmt"
	"regexp"
)

var layerNamePattern = regexp.MustCompile(`\bname\s*:\s*"([^"]*)"`)

// layerBlock is one top-level `layer { ... }` entry of a prototxt file.
type layerBlock struct {
	name       string
	start, end int // byte offsets, end exclusive
}

// TruncateTopology drops every layer declared after the layer named last.
// Header fields (name, input, input_shape) are kept as they are.
func TruncateTopology(prototxt []byte, last string) ([]byte, error) {
	layers, err := scanLayers(prototxt)
	if err != nil {
		return nil, err
	}

	for i, l := range layers {
		if l.name != last {
			continue
		}
		if i == len(layers)-1 {
			return prototxt, nil
		}
		out := make([]byte, 0, l.end+1)
		out = append(out, prototxt[:l.end]...)
		out = append(out, '\n')
		return out, nil
	}
	return nil, fmt.Errorf("topology has no layer %q", last)
}

// PrepareTopology checks that prototxt is the colorization network, with
// the head layers following LogitsLayer, and cuts it after LogitsLayer so
// the head can be evaluated by Head.
func PrepareTopology(prototxt []byte) ([]byte, error) {
	names, err := layerNames(prototxt)
	if err != nil {
		return nil, err
	}
	index := make(map[string]int, len(names))
	for i, name := range names {
		index[name] = i
	}
	logits, ok := index[LogitsLayer]
	if !ok {
		return nil, fmt.Errorf("topology has no layer %q", LogitsLayer)
	}
	for _, head := range []string{RebalanceLayer, ChromaLayer} {
		i, ok := index[head]
		if !ok {
			return nil, fmt.Errorf("topology has no layer %q", head)
		}
		if i < logits {
			return nil, fmt.Errorf("topology declares %q before %q", head, LogitsLayer)
		}
	}
	return TruncateTopology(prototxt, LogitsLayer)
}

// layerNames lists the top-level layer names in declaration order.
func layerNames(prototxt []byte) ([]string, error) {
	layers, err := scanLayers(prototxt)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(layers))
	for i, l := range layers {
		names[i] = l.name
	}
	return names, nil
}

func scanLayers(src []byte) ([]layerBlock, error) {
	var (
		layers []layerBlock
		depth  int
		open   = -1
	)

	for i := 0; i < len(src); i++ {
		switch c := src[i]; c {
		case '#':
			for i < len(src) && src[i] != '\n' {
				i++
			}
		case '"', '\'':
			i++
			for i < len(src) && src[i] != c {
				if src[i] == '\\' {
					i++
				}
				i++
			}
			if i >= len(src) {
				return nil, fmt.Errorf("topology: unterminated string")
			}
		case '{':
			if depth == 0 {
				if !bytes.Equal(lastWord(src[:i]), []byte("layer")) {
					open = -1
				} else {
					open = wordStart(src[:i])
				}
			}
			depth++
		case '}':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("topology: unbalanced '}' at offset %d", i)
			}
			if depth == 0 && open >= 0 {
				block := layerBlock{start: open, end: i + 1}
				m := layerNamePattern.FindSubmatch(src[block.start:block.end])
				if m == nil {
					return nil, fmt.Errorf("topology: layer at offset %d has no name", open)
				}
				block.name = string(m[1])
				layers = append(layers, block)
				open = -1
			}
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("topology: unbalanced '{'")
	}
	return layers, nil
}

// lastWord returns the identifier that ends right before trailing spaces
// and an optional ':'.
func lastWord(b []byte) []byte {
	b = bytes.TrimRight(b, " \t\r\n")
	b = bytes.TrimSuffix(b, []byte(":"))
	b = bytes.TrimRight(b, " \t\r\n")
	return b[wordStart(b):]
}

func wordStart(b []byte) int {
	b = bytes.TrimRight(b, " \t\r\n")
	b = bytes.TrimSuffix(b, []byte(":"))
	b = bytes.TrimRight(b, " \t\r\n")
	i := len(b)
	for i > 0 && isIdent(b[i-1]) {
		i--
	}
	return i
}

func isIdent(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}
