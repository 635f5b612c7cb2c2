// Package rubric holds the scoring template of a semester: criteria with
// point caps whose descriptions embed the sub-criteria a student scores.
package rubric

type Rubric struct {
	ID           int64       `json:"id" db:"id" yaml:"-"`
	Name         string      `json:"name" db:"name" yaml:"name"`
	AcademicYear string      `json:"academic_year" db:"academic_year" yaml:"academic_year"`
	MaxScore     float64     `json:"max_score" db:"max_score" yaml:"max_score"`
	Active       bool        `json:"active" db:"active" yaml:"active"`
	Criteria     []Criterion `json:"criteria,omitempty" db:"-" yaml:"criteria"`
}

type Criterion struct {
	ID          int64   `json:"id" db:"id" yaml:"-"`
	RubricID    int64   `json:"rubric_id" db:"rubric_id" yaml:"-"`
	Name        string  `json:"name" db:"name" yaml:"name"`
	Description string  `json:"description" db:"description" yaml:"description"`
	MaxPoints   float64 `json:"max_points" db:"max_points" yaml:"max_points"`
	OrderIndex  int     `json:"order_index" db:"order_index" yaml:"order"`
}

// SubCriteria extracts the sub-criteria embedded in the criterion description.
func (c Criterion) SubCriteria() []SubCriterion {
	return ExtractSubCriteria(c.Description)
}

// IDs returns the criterion ids of r in rubric order.
func (r Rubric) IDs() []int64 {
	ids := make([]int64, 0, len(r.Criteria))
	for _, c := range r.Criteria {
		ids = append(ids, c.ID)
	}
	return ids
}

// CriterionByID finds a criterion of r.
func (r Rubric) CriterionByID(id int64) (Criterion, bool) {
	for _, c := range r.Criteria {
		if c.ID == id {
			return c, true
		}
	}
	return Criterion{}, false
}
