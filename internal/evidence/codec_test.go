package evidence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func score(v float64) *float64 { return &v }

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []Entry
	}{
		{
			name: "scores and evidence",
			in:   "SCORES:1.1=3,1.2=10|EVIDENCE:1.1. Thái độ: /files/evidence/1/a.jpg /files/evidence/2/b.pdf 1.2. Kết quả: /files/evidence/3/c.png",
			want: []Entry{
				{SubCriteriaID: "1.1", Name: "Thái độ", FileURLs: []string{"/files/evidence/1/a.jpg", "/files/evidence/2/b.pdf"}, Score: score(3)},
				{SubCriteriaID: "1.2", Name: "Kết quả", FileURLs: []string{"/files/evidence/3/c.png"}, Score: score(10)},
			},
		},
		{
			name: "score without evidence still emitted",
			in:   "SCORES:1.1=3,1.3=2|EVIDENCE:1.1. Thái độ: /files/evidence/1/a.jpg",
			want: []Entry{
				{SubCriteriaID: "1.1", Name: "Thái độ", FileURLs: []string{"/files/evidence/1/a.jpg"}, Score: score(3)},
				{SubCriteriaID: "1.3", FileURLs: []string{}, Score: score(2)},
			},
		},
		{
			name: "legacy evidence only",
			in:   "1.1. Tham gia: /files/evidence/9/x.jpg, ghi chú 1.2. Khác: không có",
			want: []Entry{
				{SubCriteriaID: "1.1", Name: "Tham gia", FileURLs: []string{"/files/evidence/9/x.jpg"}},
				{SubCriteriaID: "1.2", Name: "Khác", FileURLs: []string{}},
			},
		},
		{
			name: "entry without files does not swallow the next one",
			in:   "EVIDENCE:1.1. A:1.2. B: /files/evidence/5/y.jpg",
			want: []Entry{
				{SubCriteriaID: "1.1", Name: "A", FileURLs: []string{}},
				{SubCriteriaID: "1.2", Name: "B", FileURLs: []string{"/files/evidence/5/y.jpg"}},
			},
		},
		{
			name: "blank and malformed pairs skipped",
			in:   "SCORES:1.1=,=4,1.2,1.3=abc, 1.4 = 2.5 |",
			want: []Entry{
				{SubCriteriaID: "1.3", FileURLs: []string{}, Score: score(0)},
				{SubCriteriaID: "1.4", FileURLs: []string{}, Score: score(2.5)},
			},
		},
		{
			name: "numeric id order",
			in:   "SCORES:1.10=1,1.2=2",
			want: []Entry{
				{SubCriteriaID: "1.2", FileURLs: []string{}, Score: score(2)},
				{SubCriteriaID: "1.10", FileURLs: []string{}, Score: score(1)},
			},
		},
		{
			name: "numeric prefix of a malformed score",
			in:   "SCORES:1.1=3abc,1.2=2.5đ,1.3=x4",
			want: []Entry{
				{SubCriteriaID: "1.1", FileURLs: []string{}, Score: score(3)},
				{SubCriteriaID: "1.2", FileURLs: []string{}, Score: score(2.5)},
				{SubCriteriaID: "1.3", FileURLs: []string{}, Score: score(0)},
			},
		},
		{name: "empty", in: "", want: nil},
		{name: "garbage", in: "||SCORES:|EVIDENCE:", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decode(tt.in))
		})
	}
}

func TestEncode(t *testing.T) {
	entries := []Entry{
		{SubCriteriaID: "1.2", Name: "Kết quả", FileURLs: []string{"/files/evidence/3/c.png"}, Score: score(10)},
		{SubCriteriaID: "1.1", Name: "Thái độ", FileURLs: []string{"/files/evidence/1/a.jpg", "/files/evidence/2/b.pdf"}, Score: score(3)},
		{SubCriteriaID: "1.3", FileURLs: []string{}, Score: score(-1)},
	}
	got := Encode(entries)
	assert.Equal(t,
		"SCORES:1.1=3,1.2=10,1.3=-1|EVIDENCE:1.1. Thái độ: /files/evidence/1/a.jpg /files/evidence/2/b.pdf 1.2. Kết quả: /files/evidence/3/c.png",
		got)

	assert.Equal(t, "", Encode(nil))
	assert.Equal(t, "SCORES:2.1=1.5", Encode([]Entry{{SubCriteriaID: "2.1", Score: score(1.5)}}))
}

func TestRoundTrip(t *testing.T) {
	inputs := []string{
		"SCORES:1.1=3,1.2=10|EVIDENCE:1.1. Thái độ: /files/evidence/1/a.jpg 1.2. Kết quả: /files/evidence/3/c.png",
		"SCORES:1.2=2,1.1=3|EVIDENCE:1.2. B: /files/evidence/2/b.jpg 1.1. A: /files/evidence/1/a.jpg",
		"1.1. Tham gia: /files/evidence/9/x.jpg, ghi chú 1.2. Khác: không có",
		"EVIDENCE:1.1.  : /files/evidence/4/z.jpg",
		"SCORES:1.1=abc,1.2=7|EVIDENCE:1.2. B:",
		"random text with no structure",
	}
	for _, in := range inputs {
		first := Decode(in)
		again := Decode(Encode(first))
		assert.Equal(t, first, again, "input %q", in)
	}
}

func TestEncodeDecodePreservesScoresAndFiles(t *testing.T) {
	scores := map[string]float64{"1.1": 3, "1.2": 0, "1.10": -2, "2.1": 4.5}
	files := map[string][]string{
		"1.1":  {"/files/evidence/7/b.jpg", "/files/evidence/6/a.jpg"},
		"1.10": {"/files/evidence/8/c%20d.pdf"},
	}
	var entries []Entry
	for id, v := range scores {
		entries = append(entries, Entry{SubCriteriaID: id, Name: "Mục " + id, FileURLs: files[id], Score: score(v)})
	}

	blob := Parse(Encode(entries))
	assert.Equal(t, scores, blob.Scores)
	for _, e := range Decode(Encode(entries)) {
		if len(files[e.SubCriteriaID]) == 0 {
			assert.Empty(t, e.FileURLs)
			continue
		}
		assert.Equal(t, files[e.SubCriteriaID], e.FileURLs)
	}
}

func TestLessID(t *testing.T) {
	assert.True(t, LessID("1.2", "1.10"))
	assert.True(t, LessID("1.9", "2.1"))
	assert.False(t, LessID("2.1", "2.1"))
	assert.True(t, LessID("1", "1.1"))
}

func TestFileURL(t *testing.T) {
	u := FileURL(42, "bằng khen, 2024.jpg")
	require.Len(t, fileURL.FindAllString(u, -1), 1)
	assert.Equal(t, u, fileURL.FindString(u))

	id, ok := FileID(u)
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)

	_, ok = FileID("/files/other/1/a")
	assert.False(t, ok)
}

func TestSafeName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "a.jpg", want: "a.jpg"},
		{name: "dated", in: "giay-khen-12.5.2024.jpg", want: "giay-khen-12-5-2024.jpg"},
		{name: "no extension", in: "scan", want: "scan"},
		{name: "dot file", in: ".jpg", want: "file.jpg"},
		{name: "version", in: "bao-cao.v1.2.pdf", want: "bao-cao-v1-2.pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SafeName(tt.in))
		})
	}
}

func TestFileURLSurvivesCodec(t *testing.T) {
	names := []string{"giay-khen-12.5.2024.jpg", "1.1. chung nhan.pdf", "bằng khen, 2024.jpg", "a.b.c.png"}
	for _, n := range names {
		u := FileURL(7, n)
		entries := []Entry{
			{SubCriteriaID: "1.1", Name: "Giấy khen", FileURLs: []string{u}, Score: score(3)},
			{SubCriteriaID: "1.2", Name: "Khác", FileURLs: []string{FileURL(8, n)}},
		}
		got := Decode(Encode(entries))
		require.Len(t, got, 2, "name %q", n)
		assert.Equal(t, []string{u}, got[0].FileURLs, "name %q", n)
		assert.Equal(t, []string{FileURL(8, n)}, got[1].FileURLs, "name %q", n)
	}
}
