package facet

import (
	"context"
	"time"

	"github.com/starford/lynx/internal/store"
)

// Counter runs grouped counts. *store.DB implements it.
type Counter interface {
	GroupCount(ctx context.Context, g store.Grouping, ids []int64) ([]map[string]any, error)
}

// Grouped builds a facet that counts ids per group.
func Grouped(db Counter, g store.Grouping, fromEvents bool) Func {
	return func(ctx context.Context, in Input) (any, error) {
		ids := in.IDs
		if fromEvents {
			ids = in.EventIDs
		}
		return db.GroupCount(ctx, g, ids)
	}
}

var (
	eventTags = store.Grouping{
		Keys:  []string{"t.id AS id", "t.name AS name"},
		From:  "events_tags et JOIN tags t ON t.id = et.tag_id",
		IDCol: "et.event_id",
	}
	eventCategories = store.Grouping{
		Keys:  []string{"t.category AS category"},
		From:  "events_tags et JOIN tags t ON t.id = et.tag_id",
		IDCol: "et.event_id",
		Where: "t.type = 'impact' AND t.category IS NOT NULL",
	}
	eventLevels = store.Grouping{
		Keys:  []string{"t.level AS level"},
		From:  "events_tags et JOIN tags t ON t.id = et.tag_id",
		IDCol: "et.event_id",
		Where: "t.type = 'impact' AND t.level IS NOT NULL",
	}
	eventStatuses = store.Grouping{
		Keys:  []string{"e.status AS status"},
		From:  "events e",
		IDCol: "e.id",
	}
)

// Content returns the content item facets.
func Content(db Counter, observe func(string, time.Duration)) *Aggregator {
	contentColumn := func(col string) store.Grouping {
		return store.Grouping{Keys: []string{"c." + col + " AS " + col}, From: "content_items c", IDCol: "c.id"}
	}
	impactTags := eventTags
	impactTags.Where = "t.type = 'impact'"

	return New(observe).
		Register("recipes", Grouped(db, store.Grouping{
			Keys:  []string{"r.id AS id", "r.name AS name"},
			From:  "content_items c JOIN recipes r ON r.id = c.recipe_id",
			IDCol: "c.id",
		}, false)).
		Register("sous_chefs", Grouped(db, store.Grouping{
			Keys:  []string{"sc.name AS name"},
			From:  "content_items c JOIN recipes r ON r.id = c.recipe_id JOIN sous_chefs sc ON sc.id = r.sous_chef_id",
			IDCol: "c.id",
		}, false)).
		Register("tags", Grouped(db, store.Grouping{
			Keys:  []string{"t.id AS id", "t.name AS name"},
			From:  "content_items_tags ct JOIN tags t ON t.id = ct.tag_id",
			IDCol: "ct.content_item_id",
		}, false)).
		Register("types", Grouped(db, contentColumn("type"), false)).
		Register("provenances", Grouped(db, contentColumn("provenance"), false)).
		Register("domains", Grouped(db, contentColumn("domain"), false)).
		Register("site_names", Grouped(db, contentColumn("site_name"), false)).
		Register("authors", Grouped(db, store.Grouping{
			Keys:  []string{"a.id AS id", "a.name AS name"},
			From:  "content_items_authors ca JOIN authors a ON a.id = ca.author_id",
			IDCol: "ca.content_item_id",
		}, false)).
		RegisterEvents("events", func(_ context.Context, in Input) (any, error) {
			return len(in.EventIDs), nil
		}).
		RegisterEvents("event_statuses", Grouped(db, eventStatuses, true)).
		RegisterEvents("impact_tags", Grouped(db, impactTags, true)).
		RegisterEvents("categories", Grouped(db, eventCategories, true)).
		RegisterEvents("levels", Grouped(db, eventLevels, true))
}

// Events returns the event facets.
func Events(db Counter, observe func(string, time.Duration)) *Aggregator {
	return New(observe).
		Register("recipes", Grouped(db, store.Grouping{
			Keys:  []string{"r.id AS id", "r.name AS name"},
			From:  "events e JOIN recipes r ON r.id = e.recipe_id",
			IDCol: "e.id",
		}, false)).
		Register("sous_chefs", Grouped(db, store.Grouping{
			Keys:  []string{"sc.name AS name"},
			From:  "events e JOIN recipes r ON r.id = e.recipe_id JOIN sous_chefs sc ON sc.id = r.sous_chef_id",
			IDCol: "e.id",
		}, false)).
		Register("tasks", Grouped(db, store.Grouping{
			Keys:  []string{"tk.id AS id", "tk.name AS name"},
			From:  "events e JOIN recipes r ON r.id = e.recipe_id JOIN tasks tk ON tk.id = r.task_id",
			IDCol: "e.id",
		}, false)).
		Register("tags", Grouped(db, eventTags, false)).
		Register("categories", Grouped(db, eventCategories, false)).
		Register("levels", Grouped(db, eventLevels, false)).
		Register("things", Grouped(db, store.Grouping{
			Keys:  []string{"th.id AS id", "th.url AS url", "th.title AS title"},
			From:  "things_events te JOIN things th ON th.id = te.thing_id",
			IDCol: "te.event_id",
		}, false)).
		Register("statuses", Grouped(db, eventStatuses, false))
}
