package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type proxyActivityRecord struct {
	bun.BaseModel `bun:"table:proxy_activity_entries,alias:pae"`

	ID         string         `bun:"id,pk"`
	Operation  string         `bun:"operation,notnull"`
	ShopDomain string         `bun:"shop_domain,notnull"`
	Status     string         `bun:"status,notnull"`
	Metadata   map[string]any `bun:"metadata,type:jsonb,notnull"`
	CreatedAt  time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}
