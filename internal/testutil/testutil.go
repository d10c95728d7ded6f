// Package testutil provides shared test helpers for setting up databases
// and seeding fixtures.
package testutil

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/starford/lynx/internal/models"
	"github.com/starford/lynx/internal/store"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *store.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "lynx-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() {
		os.Remove(dbFile.Name())
		os.Remove(dbFile.Name() + "-wal")
		os.Remove(dbFile.Name() + "-shm")
	})

	db, err := store.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// Fixture seeds rows for one org. Every helper fails the test on error.
type Fixture struct {
	t   *testing.T
	DB  *store.DB
	Org models.Org

	tasks map[string]int64
	chefs map[string]int64
	seq   int
}

// NewFixture opens a temporary database with a single org.
func NewFixture(t *testing.T) *Fixture {
	t.Helper()
	return ForOrg(t, TestDB(t), "gazette")
}

// ForOrg creates another org in db and returns a fixture scoped to it.
func ForOrg(t *testing.T, db *store.DB, slug string) *Fixture {
	t.Helper()
	f := &Fixture{t: t, DB: db, tasks: map[string]int64{}, chefs: map[string]int64{}}
	f.Org = models.Org{Name: slug, Slug: slug}
	f.must(db.CreateOrg(context.Background(), &f.Org))
	return f
}

func (f *Fixture) must(err error) {
	f.t.Helper()
	if err != nil {
		f.t.Fatal(err)
	}
}

func (f *Fixture) next() int {
	f.seq++
	return f.seq
}

// ImpactTag creates an impact tag.
func (f *Fixture) ImpactTag(name, category, level string) models.Tag {
	f.t.Helper()
	tag := models.Tag{OrgID: f.Org.ID, Name: name, Type: models.TagTypeImpact, Category: &category, Level: &level}
	f.must(f.DB.CreateTag(context.Background(), &tag))
	return tag
}

// SubjectTag creates a subject tag.
func (f *Fixture) SubjectTag(name string) models.Tag {
	f.t.Helper()
	tag := models.Tag{OrgID: f.Org.ID, Name: name, Type: models.TagTypeSubject}
	f.must(f.DB.CreateTag(context.Background(), &tag))
	return tag
}

// Thing creates a thing.
func (f *Fixture) Thing(title string) models.Thing {
	f.t.Helper()
	th := models.Thing{OrgID: f.Org.ID, Title: title, URL: fmt.Sprintf("https://example.com/things/%d", f.next())}
	f.must(f.DB.CreateThing(context.Background(), &th))
	return th
}

// Author creates an author.
func (f *Fixture) Author(name string) models.Author {
	f.t.Helper()
	a := models.Author{OrgID: f.Org.ID, Name: name}
	f.must(f.DB.CreateAuthor(context.Background(), &a))
	return a
}

// Recipe creates a recipe under the named task and sous chef, creating
// either on first use.
func (f *Fixture) Recipe(name, task, sousChef string) models.Recipe {
	f.t.Helper()
	ctx := context.Background()
	if _, ok := f.tasks[task]; !ok {
		tk := models.Task{OrgID: f.Org.ID, Name: task}
		f.must(f.DB.CreateTask(ctx, &tk))
		f.tasks[task] = tk.ID
	}
	if _, ok := f.chefs[sousChef]; !ok {
		sc := models.SousChef{OrgID: f.Org.ID, Name: sousChef}
		f.must(f.DB.CreateSousChef(ctx, &sc))
		f.chefs[sousChef] = sc.ID
	}
	taskID, chefID := f.tasks[task], f.chefs[sousChef]
	r := models.Recipe{OrgID: f.Org.ID, Name: name, TaskID: &taskID, SousChefID: &chefID}
	f.must(f.DB.CreateRecipe(ctx, &r))
	return r
}

// Content creates a content item. Unset org, url, type and created are
// filled in; created values step back one hour per call.
func (f *Fixture) Content(it models.ContentItem) models.ContentItem {
	f.t.Helper()
	n := f.next()
	it.OrgID = f.Org.ID
	if it.URL == "" {
		it.URL = fmt.Sprintf("https://example.com/news/%d", n)
	}
	if it.Domain == "" {
		it.Domain = "example.com"
	}
	if it.Type == "" {
		it.Type = models.ContentTypeArticle
	}
	if it.Created.IsZero() {
		it.Created = Epoch.Add(-time.Duration(n) * time.Hour)
	}
	f.must(f.DB.CreateContentItem(context.Background(), &it))
	return it
}

// Event creates an event. Unset org, source id and created are filled in.
func (f *Fixture) Event(e models.Event) models.Event {
	f.t.Helper()
	n := f.next()
	e.OrgID = f.Org.ID
	if e.SourceID == "" {
		e.SourceID = fmt.Sprintf("source:%d", n)
	}
	if e.Created.IsZero() {
		e.Created = Epoch.Add(-time.Duration(n) * time.Hour)
	}
	f.must(f.DB.CreateEvent(context.Background(), &e))
	return e
}

// Epoch anchors fixture timestamps.
var Epoch = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
