package surt

import (
	"iter"
	"strings"
)

type stage uint8

const (
	stageFull stage = iota
	stageQuery
	stagePath
	stageHostClose
	stageHost
	stageUser
	stagePort
	stageLabels
	stageDone
)

// Tokenizer yields the search terms of one SURT key, most specific first.
// Each term is a strict prefix of the term before it, so the sequence is
// finite. A Tokenizer is single-use; build a new one to start over.
type Tokenizer struct {
	key     string
	hostEnd int // index of ')' in key
	rem     string
	last    string
	stage   stage
}

// NewTokenizer derives the SURT key of url and returns a tokenizer over it.
// surtOrdered states that url is already a SURT key. Errors wrap
// domain.ErrMalformedURL.
func NewTokenizer(url string, surtOrdered bool) (*Tokenizer, error) {
	key, err := keyFor(url, surtOrdered)
	if err != nil {
		return nil, err
	}
	return newTokenizer(key), nil
}

func newTokenizer(key string) *Tokenizer {
	return &Tokenizer{key: key, hostEnd: strings.IndexByte(key, ')'), rem: key}
}

// Key returns the full SURT key the tokenizer expands.
func (t *Tokenizer) Key() string { return t.key }

// Next returns the next, broader search term. ok is false once the
// sequence is exhausted.
func (t *Tokenizer) Next() (term string, ok bool) {
	for t.stage != stageDone {
		cand, emit := t.step()
		if !emit {
			continue
		}
		// only strictly shorter prefixes of the key are emitted
		if t.last != "" && len(cand) >= len(t.last) {
			continue
		}
		t.last = cand
		return cand, true
	}
	return "", false
}

// step advances the state machine by one move and reports a candidate term.
func (t *Tokenizer) step() (string, bool) {
	switch t.stage {
	case stageFull:
		t.stage = stageQuery
		return t.key, true

	case stageQuery:
		t.stage = stagePath
		if i := strings.IndexByte(t.rem, '?'); i > t.hostEnd {
			t.rem = t.rem[:i]
			return t.rem, true
		}
		return "", false

	case stagePath:
		path := t.rem[t.hostEnd+1:]
		if path == "" || path == "/" {
			t.stage = stageHostClose
			return "", false
		}
		if strings.HasSuffix(path, "/") {
			t.rem = t.rem[:len(t.rem)-1]
			return t.rem, true
		}
		switch i := strings.LastIndexByte(path, '/'); {
		case i > 0:
			t.rem = t.rem[:t.hostEnd+1+i]
		case i == 0:
			t.rem = t.rem[:t.hostEnd+2]
		default:
			t.stage = stageHostClose
			return "", false
		}
		return t.rem, true

	case stageHostClose:
		t.stage = stageHost
		t.rem = t.key[:t.hostEnd+1]
		return t.rem, true

	case stageHost:
		t.stage = stageUser
		t.rem = t.key[:t.hostEnd]
		return t.rem, true

	case stageUser:
		t.stage = stagePort
		if i := strings.LastIndexByte(t.rem, '@'); i > 0 {
			t.rem = t.rem[:i]
			return t.rem, true
		}
		return "", false

	case stagePort:
		t.stage = stageLabels
		if i := portIndex(t.rem); i > 0 {
			t.rem = t.rem[:i]
			return t.rem, true
		}
		return "", false

	case stageLabels:
		i := strings.LastIndexByte(t.rem, ',')
		if i <= 0 || strings.HasPrefix(t.rem, "[") {
			t.stage = stageDone
			return "", false
		}
		cand := t.rem[:i]
		// a bare top-level label is never a search term
		if !strings.Contains(cand, ",") {
			t.stage = stageDone
			return "", false
		}
		t.rem = cand
		return cand, true
	}
	t.stage = stageDone
	return "", false
}

// portIndex returns the index of the ':' that starts a port suffix, or -1.
func portIndex(host string) int {
	if strings.HasPrefix(host, "[") {
		end := strings.IndexByte(host, ']')
		if end > 0 && end+1 < len(host) && host[end+1] == ':' {
			return end + 1
		}
		return -1
	}
	return strings.LastIndexByte(host, ':')
}

// Terms returns the search terms for url as a restartable sequence: every
// range over the result walks the same terms from the start.
func Terms(url string, surtOrdered bool) (iter.Seq[string], error) {
	key, err := keyFor(url, surtOrdered)
	if err != nil {
		return nil, err
	}
	return func(yield func(string) bool) {
		t := newTokenizer(key)
		for {
			term, ok := t.Next()
			if !ok || !yield(term) {
				return
			}
		}
	}, nil
}

// collect returns all search terms for url.
func collect(url string, surtOrdered bool) ([]string, error) {
	seq, err := Terms(url, surtOrdered)
	if err != nil {
		return nil, err
	}
	var out []string
	for term := range seq {
		out = append(out, term)
	}
	return out, nil
}
