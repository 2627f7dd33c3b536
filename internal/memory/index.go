// Package memory implements the per-session recall index: a keyword-overlap,
// recency-weighted score over past question/answer pairs, used to surface a
// handful of relevant prior turns into the Setup phase of a new query.
package memory

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"
)

// DefaultHalfLifeDays is the recency decay constant H in
// score = overlap(query, entry) * exp(-deltaDays / H).
const DefaultHalfLifeDays = 7.0

// DefaultTopK is how many entries Recall returns by default.
const DefaultTopK = 3

// Entry is one recorded question/answer pair, scoped to a single session.
type Entry struct {
	Question      string    `json:"question"`
	AnswerSummary string    `json:"answer_summary"`
	Keywords      []string  `json:"keywords"`
	Timestamp     time.Time `json:"timestamp"`
}

// Index is the interface for the memory recall index. Recall is strictly
// per-session: it never surfaces entries recorded under a different session
// key, even if their content would otherwise score highly.
type Index interface {
	// Record appends one question/answer pair to sessionKey's memory.
	Record(ctx context.Context, sessionKey, question, answerSummary string) error

	// Recall returns up to topK entries recorded under sessionKey, ranked by
	// keyword-overlap-times-recency-decay score against query. topK <= 0
	// uses DefaultTopK.
	Recall(ctx context.Context, sessionKey, query string, topK int) ([]Entry, error)

	// DeleteSession removes every entry recorded under sessionKey, for
	// cascade delete when a session is removed.
	DeleteSession(ctx context.Context, sessionKey string) error
}

// FileIndex is a JSONL-file-backed Index: one "<sessionKey>.jsonl" file per
// session under Root, one Entry per line.
type FileIndex struct {
	root         string
	halfLifeDays float64
}

// NewFileIndex creates a FileIndex rooted at dir, creating dir if needed.
func NewFileIndex(dir string) (*FileIndex, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create memory index root: %w", err)
	}
	return &FileIndex{root: dir, halfLifeDays: DefaultHalfLifeDays}, nil
}

// maxSanitizedSessionKeyLength bounds the filename derived from a session
// key so an arbitrarily long key can't produce an unusable path.
const maxSanitizedSessionKeyLength = 200

func (idx *FileIndex) path(sessionKey string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", "..", "_")
	key := replacer.Replace(sessionKey)
	key = strings.Map(func(r rune) rune {
		if !unicode.IsPrint(r) {
			return '_'
		}
		return r
	}, key)
	if runes := []rune(key); len(runes) > maxSanitizedSessionKeyLength {
		key = string(runes[:maxSanitizedSessionKeyLength])
	}
	return filepath.Join(idx.root, key+".jsonl")
}

// Record implements Index.
func (idx *FileIndex) Record(ctx context.Context, sessionKey, question, answerSummary string) error {
	entry := Entry{
		Question:      question,
		AnswerSummary: answerSummary,
		Keywords:      tokenize(question + " " + answerSummary),
		Timestamp:     time.Now(),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode memory entry: %w", err)
	}
	f, err := os.OpenFile(idx.path(sessionKey), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open memory log for %q: %w", sessionKey, err)
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append memory entry for %q: %w", sessionKey, err)
	}
	return f.Sync()
}

// Recall implements Index.
func (idx *FileIndex) Recall(ctx context.Context, sessionKey, query string, topK int) ([]Entry, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}
	entries, err := idx.readAll(sessionKey)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}

	queryTokens := tokenize(query)
	now := time.Now()

	type scored struct {
		entry Entry
		score float64
	}
	ranked := make([]scored, 0, len(entries))
	for _, e := range entries {
		overlap := keywordOverlap(queryTokens, e.Keywords)
		if overlap == 0 {
			continue
		}
		deltaDays := now.Sub(e.Timestamp).Hours() / 24
		if deltaDays < 0 {
			deltaDays = 0
		}
		score := overlap * math.Exp(-deltaDays/idx.halfLifeDays)
		ranked = append(ranked, scored{entry: e, score: score})
	}

	sort.Slice(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	if len(ranked) > topK {
		ranked = ranked[:topK]
	}
	out := make([]Entry, len(ranked))
	for i, r := range ranked {
		out[i] = r.entry
	}
	return out, nil
}

func (idx *FileIndex) readAll(sessionKey string) ([]Entry, error) {
	f, err := os.Open(idx.path(sessionKey))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// DeleteSession removes a session's recorded memory entirely.
func (idx *FileIndex) DeleteSession(ctx context.Context, sessionKey string) error {
	if err := os.Remove(idx.path(sessionKey)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

var tokenRE = regexp.MustCompile(`[a-z0-9]+`)

// tokenize lowercases and splits text into alphanumeric keyword tokens,
// filtering the handful of stopwords too common to carry any signal.
func tokenize(text string) []string {
	matches := tokenRE.FindAllString(strings.ToLower(text), -1)
	out := make([]string, 0, len(matches))
	seen := make(map[string]bool, len(matches))
	for _, m := range matches {
		if len(m) < 2 || stopwords[m] || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true, "was": true,
	"were": true, "to": true, "of": true, "and": true, "or": true, "in": true,
	"on": true, "for": true, "it": true, "this": true, "that": true, "with": true,
	"do": true, "does": true, "did": true, "you": true, "me": true, "my": true,
	"what": true, "how": true, "can": true, "please": true,
}

// keywordOverlap returns the count of distinct tokens shared between query
// and entry keyword sets.
func keywordOverlap(query, entryKeywords []string) float64 {
	if len(query) == 0 || len(entryKeywords) == 0 {
		return 0
	}
	set := make(map[string]bool, len(entryKeywords))
	for _, k := range entryKeywords {
		set[k] = true
	}
	overlap := 0.0
	for _, q := range query {
		if set[q] {
			overlap++
		}
	}
	return overlap
}
