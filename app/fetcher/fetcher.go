package fetcher

import (
	"context"
	"errors"

	"github.com/curatehq/curator/app/curation"
	"github.com/curatehq/curator/app/database"
	"github.com/curatehq/curator/app/source"
)

// ErrUnsupportedKind marks sources whose content is collected by an
// external collaborator rather than this process.
var ErrUnsupportedKind = errors.New("source kind not fetched by this process")

// Fetcher retrieves recent content records from a monitored source. The
// fetch itself happens entirely outside any store transaction; records are
// handed to the ingestion ledger afterwards.
type Fetcher interface {
	Fetch(ctx context.Context, src database.Source, settings source.Settings) ([]curation.ItemRecord, error)
}
