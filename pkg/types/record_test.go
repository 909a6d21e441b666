// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "testing"

func TestPubDateString(t *testing.T) {
	cases := []struct {
		d    PubDate
		want string
	}{
		{PubDate{}, ""},
		{PubDate{Year: 2019}, "2019"},
		{PubDate{Year: 2019, Month: 3}, "2019-03"},
		{PubDate{Year: 2019, Month: 12, Day: 5}, "2019-12-05"},
	}
	for _, c := range cases {
		if got := c.d.String(); got != c.want {
			t.Errorf("%+v.String() = %q, want %q", c.d, got, c.want)
		}
	}
}

func TestCloneIsDeep(t *testing.T) {
	orig := Record{
		ID:         "1",
		Authors:    []AuthorRef{{LastName: "Okafor", Affiliations: []string{"Lagos"}}},
		MeshTerms:  []string{"Mice"},
		ArticleIDs: map[string]string{"doi": "10.1/x"},
	}

	clone := orig.Clone()
	clone.Authors[0].LastName = "Changed"
	clone.Authors[0].Affiliations[0] = "Changed"
	clone.MeshTerms[0] = "Changed"
	clone.ArticleIDs["doi"] = "changed"

	if orig.Authors[0].LastName != "Okafor" || orig.Authors[0].Affiliations[0] != "Lagos" {
		t.Errorf("clone shares author storage: %+v", orig.Authors)
	}
	if orig.MeshTerms[0] != "Mice" {
		t.Errorf("clone shares mesh storage: %v", orig.MeshTerms)
	}
	if orig.ArticleIDs["doi"] != "10.1/x" {
		t.Errorf("clone shares id map: %v", orig.ArticleIDs)
	}
}

func TestCitation(t *testing.T) {
	rec := Record{
		ID:    "1",
		Title: "Effects of colonization.",
		Authors: []AuthorRef{
			{LastName: "Okafor", Initials: "A"},
			{CollectiveName: "Microbiome Consortium"},
		},
		Journal: Journal{Title: "Journal of Biology", Volume: "58", Issue: "12"},
		PubDate: PubDate{Year: 2019, Month: 12},
	}
	want := "Okafor A, Microbiome Consortium. Effects of colonization. Journal of Biology. 2019;58(12)."
	if got := rec.Citation(); got != want {
		t.Errorf("Citation() = %q, want %q", got, want)
	}

	bare := Record{ID: "2", Title: "Untitled journal entry."}
	if got := bare.Citation(); got != "Untitled journal entry." {
		t.Errorf("Citation() = %q", got)
	}
}
