package statefile

import (
	"bytes"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// ErrNotStateFile is returned by Parse for content that lacks the
// SESSION-STATE.md title.
var ErrNotStateFile = errors.New("not a session state document")

// fallbackHeadingText is the heading of a body produced without a summary.
const fallbackHeadingText = "Recent Conversation (Fallback)"

var (
	markdownOnce   sync.Once
	markdownParser goldmark.Markdown
)

func getMarkdown() goldmark.Markdown {
	markdownOnce.Do(func() {
		markdownParser = goldmark.New()
	})
	return markdownParser
}

// Parsed is the structure recovered from a state document.
type Parsed struct {
	Title      string
	UpdatedAt  time.Time
	Updated    string
	SessionKey string
	Trigger    string
	Generator  string
	// Headings are the section headings of the body, in order.
	Headings []string
	Body     string
	// Fallback is true when the body was produced without a summary.
	Fallback bool
}

// Parse recovers the metadata, body and body headings of a rendered
// document. Documents edited by hand are accepted as long as the title is
// intact; missing fields are left empty.
func Parse(content string) (*Parsed, error) {
	source := []byte(content)
	doc := getMarkdown().Parser().Parse(text.NewReader(source))

	var blocks []ast.Node
	var breaks []int
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if n.Kind() == ast.KindThematicBreak {
			breaks = append(breaks, len(blocks))
		}
		blocks = append(blocks, n)
	}

	beforeBody := func(i int) bool { return len(breaks) == 0 || i < breaks[0] }
	inBody := func(i int) bool { return len(breaks) >= 2 && i > breaks[0] && i < breaks[len(breaks)-1] }
	afterBody := func(i int) bool { return len(breaks) >= 2 && i > breaks[len(breaks)-1] }

	p := &Parsed{}
	for i, block := range blocks {
		switch node := block.(type) {
		case *ast.Heading:
			switch {
			case node.Level == 1 && p.Title == "" && beforeBody(i):
				p.Title = inlineText(node, source)
			case inBody(i):
				p.Headings = append(p.Headings, inlineText(node, source))
			}
		case *ast.Paragraph:
			switch {
			case beforeBody(i):
				p.readMetadata(node, source)
			case afterBody(i):
				p.readFooter(node, source)
			}
		}
	}

	if p.Title != Title {
		return nil, ErrNotStateFile
	}

	p.Body = extractBody(content)
	p.Fallback = slices.Contains(p.Headings, fallbackHeadingText)
	return p, nil
}

func (p *Parsed) readMetadata(node *ast.Paragraph, source []byte) {
	for _, line := range paragraphLines(node, source) {
		label, value, ok := strings.Cut(line, ": ")
		if !ok {
			continue
		}
		switch label {
		case labelUpdated:
			p.Updated = value
			if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
				p.UpdatedAt = t
			}
		case labelSession:
			p.SessionKey = value
		case labelTrigger:
			p.Trigger = value
		}
	}
}

func (p *Parsed) readFooter(node *ast.Paragraph, source []byte) {
	for _, line := range paragraphLines(node, source) {
		if generator, ok := strings.CutPrefix(line, "Auto-generated by "); ok {
			p.Generator = generator
		}
	}
}

// paragraphLines returns the raw source lines of a paragraph with
// surrounding whitespace and emphasis markers removed.
func paragraphLines(node *ast.Paragraph, source []byte) []string {
	lines := node.Lines()
	out := make([]string, 0, lines.Len())
	for i := range lines.Len() {
		segment := lines.At(i)
		line := strings.TrimSpace(string(segment.Value(source)))
		out = append(out, strings.Trim(line, "*"))
	}
	return out
}

// inlineText concatenates the text of a node's inline descendants.
func inlineText(node ast.Node, source []byte) string {
	var buf bytes.Buffer
	_ = ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := n.(type) {
		case *ast.Text:
			buf.Write(t.Segment.Value(source))
			if t.SoftLineBreak() {
				buf.WriteByte(' ')
			}
		case *ast.String:
			buf.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(buf.String())
}

// extractBody returns the text between the first and last separator lines.
func extractBody(content string) string {
	sep := "\n" + separator + "\n"
	first := strings.Index(content, sep)
	last := strings.LastIndex(content, sep)
	if first < 0 || last <= first {
		return ""
	}
	return strings.TrimSpace(content[first+len(sep) : last])
}
