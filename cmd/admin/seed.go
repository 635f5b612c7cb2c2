package main

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/Haole1945/drl-platform-sub001/internal/db"
	"github.com/Haole1945/drl-platform-sub001/internal/rubric"
)

// seedFile is the layout of a seed YAML file:
//
//	rubric:
//	  name: Phiếu đánh giá rèn luyện
//	  academic_year: 2024-2025
//	  max_score: 100
//	  active: true
//	  criteria:
//	    - name: Ý thức học tập
//	      max_points: 20
//	      description: |
//	        Bao gồm:
//	        1.1. Ý thức và thái độ trong học tập: 3 điểm
//	periods:
//	  - semester: 2024-2025-HK1
//	    appeal_deadline: 2025-02-15T23:59:59+07:00
type seedFile struct {
	Rubric  rubric.Rubric `yaml:"rubric"`
	Periods []db.Period   `yaml:"periods"`
}

func readSeed(r io.Reader) (*seedFile, error) {
	var s seedFile
	if err := yaml.NewDecoder(r).Decode(&s); err != nil {
		return nil, errors.Wrap(err, "decoding seed file")
	}
	if s.Rubric.Name == "" {
		return nil, errors.New("rubric.name is required")
	}
	if len(s.Rubric.Criteria) == 0 {
		return nil, errors.New("rubric has no criteria")
	}
	for i, c := range s.Rubric.Criteria {
		if c.Name == "" {
			return nil, errors.Errorf("criteria[%d].name is required", i)
		}
		if c.MaxPoints <= 0 {
			return nil, errors.Errorf("criteria[%d].max_points must be positive", i)
		}
	}
	for i, p := range s.Periods {
		if p.Semester == "" {
			return nil, errors.Errorf("periods[%d].semester is required", i)
		}
	}
	return &s, nil
}

// capWarnings lists the criteria whose sub-criteria exceed the criterion cap.
func capWarnings(rb rubric.Rubric) []string {
	var out []string
	for _, c := range rb.Criteria {
		subs := c.SubCriteria()
		if len(subs) == 0 {
			out = append(out, fmt.Sprintf("criterion %q has no parsable sub-criteria", c.Name))
			continue
		}
		if m := rubric.CheckCaps(c, subs); m != nil {
			out = append(out, fmt.Sprintf("criterion %q: sub-criteria add up to %g, cap is %g", c.Name, m.SubTotal, m.MaxPoints))
		}
	}
	return out
}
