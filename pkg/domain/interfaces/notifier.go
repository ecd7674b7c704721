package interfaces

import (
	"context"

	"github.com/m-mizutani/gitpulse/pkg/domain/model"
)

// AdvisoryNotifier forwards advisories to an external sink
type AdvisoryNotifier interface {
	Notify(ctx context.Context, advisory *model.Advisory) error
}
