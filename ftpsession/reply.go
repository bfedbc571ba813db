package ftpsession

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/lavv17/lftp-sub002/iobuf"
)

// Reply is one complete (possibly multi-line) control-protocol reply,
// per spec.md §4.5's framing: "first line NNN-…, intermediate lines
// arbitrary, terminating line NNN …".
type Reply struct {
	Code  int
	Lines []string // text after the code on each line, in order
	Raw   string   // the full reply, CRLF-joined, for error messages
}

// Line returns the reply's first text line, the common case for
// single-line replies.
func (r *Reply) Line() string {
	if len(r.Lines) == 0 {
		return ""
	}
	return r.Lines[0]
}

// ReplyReader incrementally parses reply lines off a control buffer,
// accumulating multi-line responses, one Step-call's worth of
// available bytes at a time — never blocking, per spec.md §5's
// "tasks never block in user code" rule.
type ReplyReader struct {
	inMultiline bool
	code        int
	lines       []string
	rawLines    []string
}

// NewReplyReader returns a fresh reader.
func NewReplyReader() *ReplyReader { return &ReplyReader{} }

// Feed consumes as many complete lines as are currently available
// from buf and returns the first complete Reply assembled, if any.
// Call it again to continue draining further replies already
// buffered (pipelining means several may arrive in one read).
func (rr *ReplyReader) Feed(buf *iobuf.Buffer) (*Reply, bool, error) {
	for {
		avail := buf.Get()
		idx := bytes.IndexByte(avail, '\n')
		if idx < 0 {
			return nil, false, nil
		}
		line := avail[:idx+1]
		buf.Skip(idx + 1)
		text := strings.TrimRight(string(line), "\r\n")

		if text == "" {
			continue
		}

		if !rr.inMultiline {
			code, sep, rest, ok := splitCodeLine(text)
			if !ok {
				// Garbage line outside any reply framing; ignore per
				// spec.md's telnet-IAC-tolerant framing note.
				continue
			}
			rr.rawLines = append(rr.rawLines, text)
			if sep == '-' {
				rr.inMultiline = true
				rr.code = code
				rr.lines = []string{rest}
				continue
			}
			return &Reply{Code: code, Lines: []string{rest}, Raw: text}, true, nil
		}

		rr.rawLines = append(rr.rawLines, text)
		// Intermediate lines are arbitrary text; termination is a line
		// starting with the stored code followed by a space.
		if len(text) >= 4 && text[:3] == codeString(rr.code) && text[3] == ' ' {
			reply := &Reply{Code: rr.code, Lines: append(rr.lines, text[4:]), Raw: strings.Join(rr.rawLines, "\r\n")}
			rr.inMultiline = false
			rr.lines = nil
			rr.rawLines = nil
			return reply, true, nil
		}
		rr.lines = append(rr.lines, text)
	}
}

func codeString(code int) string {
	s := strconv.Itoa(code)
	for len(s) < 3 {
		s = "0" + s
	}
	return s
}

// splitCodeLine parses "NNN<sep>rest" into its numeric code, the
// separator byte ('-' or ' '), and the remaining text.
func splitCodeLine(text string) (code int, sep byte, rest string, ok bool) {
	if len(text) < 4 {
		return 0, 0, "", false
	}
	for i := 0; i < 3; i++ {
		if text[i] < '0' || text[i] > '9' {
			return 0, 0, "", false
		}
	}
	n, err := strconv.Atoi(text[:3])
	if err != nil {
		return 0, 0, "", false
	}
	sepCh := text[3]
	if sepCh != '-' && sepCh != ' ' {
		return 0, 0, "", false
	}
	return n, sepCh, strings.TrimPrefix(text[4:], ""), true
}
