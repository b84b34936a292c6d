package store

import (
	"context"
	"fmt"

	"github.com/lib/pq"
)

// NotifyTriggerSQL installs a trigger that publishes every insert, update and
// delete on conversations and products to channel as
// {"table": ..., "op": ..., "id": ...}.
func NotifyTriggerSQL(channel string) string {
	return fmt.Sprintf(`CREATE OR REPLACE FUNCTION scorecard_notify_change() RETURNS trigger AS $$
DECLARE
	rec RECORD;
BEGIN
	IF TG_OP = 'DELETE' THEN
		rec := OLD;
	ELSE
		rec := NEW;
	END IF;
	PERFORM pg_notify(%s, json_build_object('table', TG_TABLE_NAME, 'op', TG_OP, 'id', rec.id)::text);
	RETURN rec;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS conversations_notify ON conversations;
CREATE TRIGGER conversations_notify AFTER INSERT OR UPDATE OR DELETE ON conversations
	FOR EACH ROW EXECUTE FUNCTION scorecard_notify_change();

DROP TRIGGER IF EXISTS products_notify ON products;
CREATE TRIGGER products_notify AFTER INSERT OR UPDATE OR DELETE ON products
	FOR EACH ROW EXECUTE FUNCTION scorecard_notify_change();`, pq.QuoteLiteral(channel))
}

func InstallNotifyTrigger(ctx context.Context, db Querier, channel string) error {
	if _, err := db.ExecContext(ctx, NotifyTriggerSQL(channel)); err != nil {
		return fmt.Errorf("install notify trigger: %w", err)
	}
	return nil
}
