package pgdb

import (
	"database/sql"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	wmsql "github.com/ThreeDotsLabs/watermill-sql/v3/pkg/sql"

	"github.com/veridex-io/veridexd/internal/core/domain"
	watermilldb "github.com/veridex-io/veridexd/internal/infrastructure/db/watermill"
)

func NewEventRepository(config ...interface{}) (domain.EventRepository, error) {
	if len(config) != 1 {
		return nil, fmt.Errorf("invalid config")
	}
	db, ok := config[0].(*sql.DB)
	if !ok {
		return nil, fmt.Errorf("cannot open event repository: invalid config")
	}

	publisher, err := wmsql.NewPublisher(
		db,
		wmsql.PublisherConfig{
			SchemaAdapter:        wmsql.DefaultPostgreSQLSchema{},
			AutoInitializeSchema: true,
		},
		watermill.NopLogger{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create event publisher: %w", err)
	}

	return watermilldb.NewWatermillEventRepository(publisher, db), nil
}
