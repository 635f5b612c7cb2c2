package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// identity is the caller the gateway would forward.
type identity struct {
	ID          int64
	Name        string
	Roles       string
	StudentCode string
}

type subCriterion struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	MaxPoints float64 `json:"max_points"`
	Penalty   bool    `json:"penalty"`
}

type evaluationResp struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
}

type workingScores struct {
	Level  string             `json:"level"`
	Source string             `json:"source"`
	Scores map[string]float64 `json:"scores"`
}

type event struct {
	Action    string `json:"action"`
	From      string `json:"from"`
	To        string `json:"to"`
	Level     string `json:"level"`
	ActorName string `json:"actor_name"`
}

type client struct {
	http  *http.Client
	base  string
	token string
}

func main() {
	base := envOr("API_BASE_URL", "http://localhost:8080")
	token := envOr("API_TOKEN", "dev-secret-token")

	baseFlag := flag.String("base", base, "API base URL (e.g., http://localhost:8080)")
	tokenFlag := flag.String("token", token, "gateway token")
	rubricID := flag.Int64("rubric", 1, "rubric id to evaluate against")
	criterionID := flag.Int64("criterion", 1, "criterion to fill in")
	semester := flag.String("semester", "2024-2025-HK1", "semester of the evaluation")
	studentCode := flag.String("student", fmt.Sprintf("SMOKE%d", time.Now().Unix()%100000), "student code")
	advisorStep := flag.Bool("advisor-step", false, "the server runs with the advisor approval step")
	flag.Parse()

	c := &client{http: &http.Client{Timeout: 12 * time.Second}, base: *baseFlag, token: *tokenFlag}
	student := identity{ID: 1001, Name: "Smoke Student", Roles: "STUDENT", StudentCode: *studentCode}
	monitor := identity{ID: 1002, Name: "Smoke Monitor", Roles: "CLASS_MONITOR", StudentCode: "SMOKEMON"}
	advisor := identity{ID: 1003, Name: "Smoke Advisor", Roles: "ADVISOR"}
	faculty := identity{ID: 1004, Name: "Smoke Faculty", Roles: "FACULTY_INSTRUCTOR"}

	// 1) Sub-criteria of the criterion
	var subs struct {
		SubCriteria []subCriterion `json:"sub_criteria"`
	}
	if err := c.do(http.MethodGet, fmt.Sprintf("/criteria/%d/sub-criteria", *criterionID), nil, nil, &subs); err != nil {
		fatalf("sub-criteria: %v", err)
	}
	if len(subs.SubCriteria) == 0 {
		fatalf("criterion %d has no sub-criteria", *criterionID)
	}
	fmt.Printf("✅ Criterion %d has %d sub-criteria\n", *criterionID, len(subs.SubCriteria))

	// 2) Student submits full marks
	entries := make([]map[string]any, 0, len(subs.SubCriteria))
	for _, s := range subs.SubCriteria {
		score := s.MaxPoints
		if s.Penalty {
			score = 0
		}
		entries = append(entries, map[string]any{"sub_criteria_id": s.ID, "name": s.Name, "score": score})
	}
	var ev evaluationResp
	err := c.do(http.MethodPost, "/evaluations", &student, map[string]any{
		"rubric_id": *rubricID,
		"semester":  *semester,
		"details":   []map[string]any{{"criteria_id": *criterionID, "entries": entries}},
	}, &ev)
	if err != nil {
		fatalf("create evaluation: %v", err)
	}
	fmt.Printf("✅ Created evaluation: id=%d status=%s\n", ev.ID, ev.Status)
	path := fmt.Sprintf("/evaluations/%d", ev.ID)

	var queue []evaluationResp
	if err := c.do(http.MethodGet, "/evaluations/pending?level=CLASS", &monitor, nil, &queue); err != nil {
		fatalf("pending queue: %v", err)
	}
	inQueue := false
	for _, q := range queue {
		inQueue = inQueue || q.ID == ev.ID
	}
	if !inQueue {
		fatalf("evaluation %d is not in the class monitor queue", ev.ID)
	}
	fmt.Printf("✅ Class queue holds %d evaluation(s)\n", len(queue))

	// 3) Class monitor drafts one point less on the first sub-criterion, then approves
	var ws workingScores
	if err := c.do(http.MethodGet, path+"/working-scores?role=CLASS_MONITOR", &monitor, nil, &ws); err != nil {
		fatalf("working scores: %v", err)
	}
	fmt.Printf("✅ Monitor working scores (%s): %v\n", ws.Source, ws.Scores)
	// working scores are keyed "<criterionId>_<subId>"
	prefix := fmt.Sprintf("%d_", *criterionID)
	first := prefix + subs.SubCriteria[0].ID
	if v, ok := ws.Scores[first]; ok && v >= 1 {
		ws.Scores[first] = v - 1
	}
	monitorScores := make(map[string]float64, len(ws.Scores))
	for k, v := range ws.Scores {
		if sub, ok := strings.CutPrefix(k, prefix); ok {
			monitorScores[sub] = v
		}
	}
	if err := c.do(http.MethodPut, path+"/drafts/CLASS_MONITOR", &monitor, map[string]any{"scores": ws.Scores}, nil); err != nil {
		fatalf("save draft: %v", err)
	}
	fmt.Println("✅ Saved monitor draft")
	approve := func(who identity, scores map[string]float64) {
		body := map[string]any{"comment": "smoke approval"}
		if scores != nil {
			body["scores"] = []map[string]any{{"criteria_id": *criterionID, "scores": scores}}
		}
		if err := c.do(http.MethodPost, path+"/approve", &who, body, &ev); err != nil {
			fatalf("approve as %s: %v", who.Roles, err)
		}
		fmt.Printf("✅ Approved as %s: status=%s\n", who.Roles, ev.Status)
	}
	approve(monitor, monitorScores)

	// 4) Remaining levels accept the seeded scores
	if *advisorStep {
		approve(advisor, nil)
	}
	approve(faculty, nil)

	// 5) History
	var history []event
	if err := c.do(http.MethodGet, path+"/history", &student, nil, &history); err != nil {
		fatalf("history: %v", err)
	}
	for _, h := range history {
		fmt.Printf("   %s %s -> %s %s by %s\n", h.Action, h.From, h.To, h.Level, h.ActorName)
	}

	// 6) Appeal window
	var can struct {
		CanAppeal bool `json:"can_appeal"`
	}
	if err := c.do(http.MethodGet, path+"/can-appeal", &student, nil, &can); err != nil {
		fatalf("can-appeal: %v", err)
	}
	fmt.Printf("✅ Student can appeal: %t\n", can.CanAppeal)

	fmt.Printf("🎉 Smoke run OK. EvaluationID=%d\n", ev.ID)
}

// --- helpers ---

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func (c *client) do(method, path string, who *identity, body any, out any) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(b)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 12*time.Second)
	defer cancel()
	url := c.base + path
	req, _ := http.NewRequestWithContext(ctx, method, url, r)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if who != nil {
		req.Header.Set("X-User-Id", strconv.FormatInt(who.ID, 10))
		req.Header.Set("X-User-Name", who.Name)
		req.Header.Set("X-User-Roles", who.Roles)
		req.Header.Set("X-Student-Code", who.StudentCode)
	}
	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode/100 != 2 {
		b, _ := io.ReadAll(res.Body)
		return fmt.Errorf("%s %s -> %d: %s", method, url, res.StatusCode, string(b))
	}
	if out != nil && res.StatusCode != http.StatusNoContent {
		return json.NewDecoder(res.Body).Decode(out)
	}
	return nil
}

func fatalf(format string, args ...any) {
	fmt.Printf("❌ "+format+"\n", args...)
	os.Exit(1)
}
