package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/pkg/errors"
	"google.golang.org/api/option"
)

// File is an evidence file with its content.
type File struct {
	ID            int64
	Name          string
	ContentType   string
	SubCriteriaID string
	Data          []byte
}

// Files loads evidence content by file id.
type Files interface {
	Load(ctx context.Context, ids []int64) ([]File, error)
}

const systemPrompt = `Bạn là chuyên gia đánh giá rèn luyện sinh viên với khả năng phát hiện minh chứng giả mạo.

QUY TẮC NGHIÊM NGẶT:
1. Phân tích kỹ nội dung từng file minh chứng.
2. Điểm rèn luyện chỉ bao gồm: ý thức học tập, kết quả học tập, chấp hành nội quy, hoạt động ngoại khóa, tinh thần vượt khó.
3. Nếu file không liên quan (ảnh selfie, ảnh ngẫu nhiên, tài liệu không liên quan) thì scorePercent 0-30 và confidence dưới 30.
4. Nếu phát hiện ảnh hoặc tài liệu bị chỉnh sửa, giả mạo thì cho điểm thấp.

Trả lời ngắn gọn bằng tiếng Việt.`

// Gemini scores evidence with a Gemini model.
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
	files  Files
}

var _ Advisor = (*Gemini)(nil)

func NewGemini(ctx context.Context, apiKey, modelName string, files Files) (*Gemini, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, errors.Wrap(err, "initializing Gemini client")
	}
	model := client.GenerativeModel(modelName)
	temp := float32(0.2)
	model.Temperature = &temp
	model.ResponseMIMEType = "application/json"
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}
	return &Gemini{client: client, model: model, files: files}, nil
}

func (g *Gemini) Close() error {
	return g.client.Close()
}

func (g *Gemini) Suggest(ctx context.Context, req Request) (*Suggestion, error) {
	start := time.Now()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	files, err := g.files.Load(ctx, req.EvidenceFileIDs)
	if err != nil {
		return nil, fail("Không thể tải được nội dung file minh chứng", err)
	}
	files = relevant(files, req.SubCriteriaID)
	if len(files) == 0 {
		return nil, fail("Không có file minh chứng cho tiêu chí này", nil)
	}

	resp, err := g.model.GenerateContent(ctx, parts(req, files)...)
	if err != nil {
		return nil, fail("Dịch vụ AI không phản hồi", err)
	}
	r, err := parseReply(responseText(resp))
	if err != nil {
		return nil, fail("Không đọc được kết quả từ dịch vụ AI", err)
	}

	s := FromPercent(r.ScorePercent, r.Confidence, req.maxScore(), r.Reason)
	s.EvaluationID = req.EvaluationID
	s.CriteriaID = req.CriteriaID
	s.SubCriteriaID = req.SubCriteriaID
	s.ProcessingMs = time.Since(start).Milliseconds()
	return &s, nil
}

// relevant keeps the files attached to subID. Files without a
// sub-criterion are kept for any request.
func relevant(files []File, subID string) []File {
	if subID == "" {
		return files
	}
	var out []File
	for _, f := range files {
		if f.SubCriteriaID == "" || f.SubCriteriaID == subID {
			out = append(out, f)
		}
	}
	return out
}

func prompt(req Request, fileCount int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Bạn đang xem %d file minh chứng cho một tiêu chí trong bảng điểm rèn luyện sinh viên.\n", fileCount)
	fmt.Fprintf(&b, "Điểm tối đa: %g\n", req.maxScore())
	for _, sub := range req.SubCriteria {
		if req.SubCriteriaID != "" && sub.ID != req.SubCriteriaID {
			continue
		}
		fmt.Fprintf(&b, "- %s %s: %g điểm", sub.ID, sub.Label, sub.MaxPoints)
		if sub.Description != "" {
			fmt.Fprintf(&b, " (%s)", sub.Description)
		}
		b.WriteString("\n")
	}
	b.WriteString(`
Trả về JSON:
{
  "scorePercent": <0-100>,
  "confidence": <0-100>,
  "isAuthentic": <true/false>,
  "reason": "<giải thích ngắn>"
}`)
	return b.String()
}

func parts(req Request, files []File) []genai.Part {
	out := []genai.Part{genai.Text(prompt(req, len(files)))}
	for _, f := range files {
		if strings.HasPrefix(f.ContentType, "image/") {
			out = append(out, genai.Blob{MIMEType: f.ContentType, Data: f.Data})
			continue
		}
		out = append(out, genai.Text(fmt.Sprintf("[File: %s, type: %s, size: %d bytes]", f.Name, f.ContentType, len(f.Data))))
	}
	return out
}

func responseText(resp *genai.GenerateContentResponse) string {
	var b strings.Builder
	if resp == nil {
		return ""
	}
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
		break
	}
	return b.String()
}

type reply struct {
	ScorePercent *float64 `json:"scorePercent"`
	Confidence   *float64 `json:"confidence"`
	IsAuthentic  *bool    `json:"isAuthentic"`
	Reason       string   `json:"reason"`
}

// parseReply reads the model's JSON, tolerating a markdown code fence.
func parseReply(text string) (reply, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var r reply
	if text == "" {
		return r, errors.New("empty reply")
	}
	if err := json.Unmarshal([]byte(text), &r); err != nil {
		return r, errors.Wrap(err, "decoding reply")
	}
	if r.IsAuthentic != nil && !*r.IsAuthentic && r.Reason == "" {
		r.Reason = "Minh chứng có dấu hiệu bị chỉnh sửa"
	}
	return r, nil
}
