// Package evidence reads and writes the combined score/evidence field stored
// per evaluation criterion:
//
//	SCORES:1.1=3,1.2=10|EVIDENCE:1.1. Name: /files/evidence/4/a.jpg 1.2. Name: ...
//
// Either segment may be missing; text without a SCORES: segment is legacy
// evidence-only content. Decoding never fails, bad input degrades to a partial
// result.
package evidence

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const (
	scoresTag   = "SCORES:"
	evidenceTag = "EVIDENCE:"
	segmentSep  = "|"
)

var (
	entryHead   = regexp.MustCompile(`(\d+\.\d+)\.\s*([^:]+):\s*`)
	entryMarker = regexp.MustCompile(`\d+\.\d+\.`)
	fileURL     = regexp.MustCompile(`/files/evidence/[^\s,]+`)
	numPrefix   = regexp.MustCompile(`^[-+]?(\d+\.?\d*|\.\d+)([eE][-+]?\d+)?`)
)

// Item is the evidence attached to one sub-criterion.
type Item struct {
	SubCriteriaID string
	Name          string
	FileURLs      []string
}

// Blob is the structured form of the field.
type Blob struct {
	Scores   map[string]float64
	Evidence []Item
}

// Entry is the merged per sub-criterion view handed to callers. Score is nil
// when the SCORES segment has no value for the id.
type Entry struct {
	SubCriteriaID string   `json:"sub_criteria_id"`
	Name          string   `json:"name"`
	FileURLs      []string `json:"file_urls"`
	Score         *float64 `json:"score,omitempty"`
}

func Decode(s string) []Entry {
	return Parse(s).Entries()
}

func Encode(entries []Entry) string {
	return FromEntries(entries).String()
}

func Parse(s string) Blob {
	return Blob{
		Scores:   parseScores(s),
		Evidence: parseEvidence(evidenceSegment(s)),
	}
}

func parseScores(s string) map[string]float64 {
	scores := make(map[string]float64)
	i := strings.Index(s, scoresTag)
	if i < 0 {
		return scores
	}
	seg := s[i+len(scoresTag):]
	if j := strings.Index(seg, segmentSep); j >= 0 {
		seg = seg[:j]
	}
	for _, pair := range strings.Split(seg, ",") {
		parts := strings.Split(pair, "=")
		if len(parts) < 2 {
			continue
		}
		id, val := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
		if id == "" || val == "" {
			continue
		}
		scores[id] = parseScore(val)
	}
	return scores
}

// parseScore reads the numeric prefix of val; "3abc" is 3 and "abc" is 0.
func parseScore(val string) float64 {
	v, err := strconv.ParseFloat(numPrefix.FindString(val), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func evidenceSegment(s string) string {
	i := strings.Index(s, evidenceTag)
	if i < 0 {
		return s
	}
	seg := s[i+len(evidenceTag):]
	if j := strings.IndexByte(seg, '\n'); j >= 0 {
		seg = seg[:j]
	}
	return seg
}

// parseEvidence walks "<id>. <label>: <rest>" entries left to right. The rest
// of an entry runs up to the next "N.M." marker, line break or end of text and
// may be empty.
func parseEvidence(seg string) []Item {
	var items []Item
	pos := 0
	for pos < len(seg) {
		loc := entryHead.FindStringSubmatchIndex(seg[pos:])
		if loc == nil {
			break
		}
		restStart := pos + loc[1]
		restEnd := len(seg)
		if m := entryMarker.FindStringIndex(seg[restStart:]); m != nil {
			restEnd = restStart + m[0]
		}
		if nl := strings.IndexByte(seg[restStart:restEnd], '\n'); nl >= 0 {
			restEnd = restStart + nl
		}

		urls := fileURL.FindAllString(seg[restStart:restEnd], -1)
		if urls == nil {
			urls = []string{}
		}
		items = append(items, Item{
			SubCriteriaID: strings.TrimSpace(seg[pos+loc[2] : pos+loc[3]]),
			Name:          strings.TrimSpace(seg[pos+loc[4] : pos+loc[5]]),
			FileURLs:      urls,
		})
		pos = restEnd
	}
	return items
}

// Entries merges scores into the evidence list. Ids that only have a score
// still produce an entry. The result is ordered by sub-criterion id.
func (b Blob) Entries() []Entry {
	var out []Entry
	seen := make(map[string]bool, len(b.Evidence))
	for _, it := range b.Evidence {
		e := Entry{SubCriteriaID: it.SubCriteriaID, Name: it.Name, FileURLs: it.FileURLs}
		if v, ok := b.Scores[it.SubCriteriaID]; ok {
			e.Score = &v
		}
		seen[it.SubCriteriaID] = true
		out = append(out, e)
	}
	for id, v := range b.Scores {
		if seen[id] {
			continue
		}
		v := v
		out = append(out, Entry{SubCriteriaID: id, FileURLs: []string{}, Score: &v})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return LessID(out[i].SubCriteriaID, out[j].SubCriteriaID)
	})
	return out
}

// FromEntries is the inverse of Entries. An entry only lands in the evidence
// segment when it carries something the scores segment cannot: a name, files,
// or the absence of a score.
func FromEntries(entries []Entry) Blob {
	b := Blob{Scores: make(map[string]float64)}
	for _, e := range entries {
		if e.Score != nil {
			b.Scores[e.SubCriteriaID] = *e.Score
		}
		if e.Name != "" || len(e.FileURLs) > 0 || e.Score == nil {
			b.Evidence = append(b.Evidence, Item{SubCriteriaID: e.SubCriteriaID, Name: e.Name, FileURLs: e.FileURLs})
		}
	}
	return b
}

func (b Blob) String() string {
	var segs []string

	if len(b.Scores) > 0 {
		ids := make([]string, 0, len(b.Scores))
		for id := range b.Scores {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return LessID(ids[i], ids[j]) })
		pairs := make([]string, len(ids))
		for i, id := range ids {
			pairs[i] = id + "=" + formatScore(b.Scores[id])
		}
		segs = append(segs, scoresTag+strings.Join(pairs, ","))
	}

	if len(b.Evidence) > 0 {
		items := make([]Item, len(b.Evidence))
		copy(items, b.Evidence)
		sort.SliceStable(items, func(i, j int) bool { return LessID(items[i].SubCriteriaID, items[j].SubCriteriaID) })
		parts := make([]string, len(items))
		for i, it := range items {
			p := it.SubCriteriaID + ". " + it.Name + ":"
			if len(it.FileURLs) > 0 {
				p += " " + strings.Join(it.FileURLs, " ")
			}
			parts[i] = p
		}
		segs = append(segs, evidenceTag+strings.Join(parts, " "))
	}

	return strings.Join(segs, segmentSep)
}

func formatScore(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// LessID orders dotted sub-criterion ids numerically per component, so 1.2
// sorts before 1.10. Non-numeric components compare as strings.
func LessID(a, b string) bool {
	as, bs := strings.Split(a, "."), strings.Split(b, ".")
	for i := 0; i < len(as) && i < len(bs); i++ {
		if as[i] == bs[i] {
			continue
		}
		an, aerr := strconv.Atoi(as[i])
		bn, berr := strconv.Atoi(bs[i])
		if aerr == nil && berr == nil {
			return an < bn
		}
		return as[i] < bs[i]
	}
	return len(as) < len(bs)
}

// Score returns the recorded score for id.
func (b Blob) Score(id string) (float64, bool) {
	v, ok := b.Scores[id]
	return v, ok
}

// FileURLs lists every evidence URL in the blob in id order.
func (b Blob) FileURLs() []string {
	var urls []string
	for _, e := range b.Entries() {
		urls = append(urls, e.FileURLs...)
	}
	return urls
}
