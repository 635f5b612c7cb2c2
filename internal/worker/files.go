package worker

import (
	"context"

	"github.com/pkg/errors"

	"github.com/Haole1945/drl-platform-sub001/internal/advisor"
	"github.com/Haole1945/drl-platform-sub001/internal/db"
)

type FileLister interface {
	List(ctx context.Context, ids []int64) ([]db.EvidenceFile, error)
}

type BlobReader interface {
	Read(ctx context.Context, ref string, limit int64) ([]byte, string, error)
}

// EvidenceLoader reads evidence rows from the database and their content
// from object storage.
type EvidenceLoader struct {
	Files FileLister
	Blobs BlobReader
	Limit int64
}

var _ advisor.Files = (*EvidenceLoader)(nil)

func (l *EvidenceLoader) Load(ctx context.Context, ids []int64) ([]advisor.File, error) {
	rows, err := l.Files.List(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]advisor.File, 0, len(rows))
	for _, f := range rows {
		data, ct, err := l.Blobs.Read(ctx, f.ObjectRef, l.Limit)
		if err != nil {
			return nil, errors.Wrapf(err, "loading evidence file %d", f.ID)
		}
		if f.ContentType != "" {
			ct = f.ContentType
		}
		out = append(out, advisor.File{
			ID:            f.ID,
			Name:          f.FileName,
			ContentType:   ct,
			SubCriteriaID: f.SubCriteriaID,
			Data:          data,
		})
	}
	return out, nil
}
