package store

import (
	"testing"
)

func TestNormalizeConceptName(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"PostgreSQL", "postgresql"},
		{"  Machine   Learning  ", "machine learning"},
		{"Go", "go"},
	}
	for _, tc := range cases {
		if got := NormalizeConceptName(tc.in); got != tc.want {
			t.Errorf("NormalizeConceptName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestUpsertConceptIdempotent(t *testing.T) {
	db := testDB(t)

	first, err := db.UpsertConcept(&Concept{OwnerID: "u1", Name: "PostgreSQL", Category: "technology"})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	// Same concept under a differently-cased name resolves to the same row.
	second, err := db.UpsertConcept(&Concept{OwnerID: "u1", Name: "postgresql", Description: "a database"})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("ids differ: %s vs %s", first.ID, second.ID)
	}
	if second.Category != "technology" {
		t.Errorf("category lost on upsert: %q", second.Category)
	}
	if second.Description != "a database" {
		t.Errorf("description not filled: %q", second.Description)
	}

	concepts, _ := db.ListConcepts("u1")
	if len(concepts) != 1 {
		t.Errorf("concept count = %d, want 1", len(concepts))
	}
}

func TestUpsertConceptPerOwner(t *testing.T) {
	db := testDB(t)

	a, _ := db.UpsertConcept(&Concept{OwnerID: "u1", Name: "Go"})
	b, err := db.UpsertConcept(&Concept{OwnerID: "u2", Name: "Go"})
	if err != nil {
		t.Fatalf("upsert other owner: %v", err)
	}
	if a.ID == b.ID {
		t.Error("concepts of different owners share a row")
	}
}

func TestUpsertRelation(t *testing.T) {
	db := testDB(t)

	src, _ := db.UpsertConcept(&Concept{OwnerID: "u1", Name: "chi"})
	dst, _ := db.UpsertConcept(&Concept{OwnerID: "u1", Name: "Go"})

	if err := db.UpsertRelation("u1", src.ID, dst.ID, "written in"); err != nil {
		t.Fatalf("UpsertRelation: %v", err)
	}
	// Same edge again is a no-op.
	if err := db.UpsertRelation("u1", src.ID, dst.ID, "written in"); err != nil {
		t.Fatalf("repeat UpsertRelation: %v", err)
	}

	relations, err := db.ListRelations("u1")
	if err != nil {
		t.Fatalf("ListRelations: %v", err)
	}
	if len(relations) != 1 {
		t.Fatalf("relation count = %d, want 1", len(relations))
	}
	if relations[0].Relation != "written in" {
		t.Errorf("relation = %q", relations[0].Relation)
	}
}

func TestUpsertRelationMissingEndpoint(t *testing.T) {
	db := testDB(t)

	c, _ := db.UpsertConcept(&Concept{OwnerID: "u1", Name: "Go"})
	if err := db.UpsertRelation("u1", c.ID, "missing", "uses"); err == nil {
		t.Error("expected error for missing endpoint")
	}
}

func TestSelfRelation(t *testing.T) {
	db := testDB(t)

	c, _ := db.UpsertConcept(&Concept{OwnerID: "u1", Name: "recursion"})
	if err := db.UpsertRelation("u1", c.ID, c.ID, "defined by"); err != nil {
		t.Fatalf("self relation: %v", err)
	}
}
