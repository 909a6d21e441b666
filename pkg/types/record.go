// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types holds the data types shared between the ingestion engine,
// the collection index, and the CLI surface.
package types

import (
	"fmt"
	"strings"
)

// Record is one normalized bibliographic entry derived from a PubmedArticle
// subtree. Records are created only by the decoder during ingestion and
// mutated only through Collection.InsertOrUpdate; callers always receive
// copies.
type Record struct {
	// ID is the PMID. Required, unique within a collection, immutable.
	ID string `json:"id" yaml:"id"`

	// Version is the PMID Version attribute (usually 1).
	Version int `json:"version,omitempty" yaml:"version,omitempty"`

	// Title is the article title.
	Title string `json:"title,omitempty" yaml:"title,omitempty"`

	// VernacularTitle is the title in the original language, when the
	// article was not published in English.
	VernacularTitle string `json:"vernacular_title,omitempty" yaml:"vernacular_title,omitempty"`

	// Abstract is the article abstract.
	Abstract string `json:"abstract,omitempty" yaml:"abstract,omitempty"`

	// CopyrightInfo is the copyright statement attached to the abstract.
	CopyrightInfo string `json:"copyright_info,omitempty" yaml:"copyright_info,omitempty"`

	// Language is the publication language code (e.g. "eng").
	Language string `json:"language,omitempty" yaml:"language,omitempty"`

	// Authors lists the article authors in document order.
	Authors []AuthorRef `json:"authors,omitempty" yaml:"authors,omitempty"`

	// Journal identifies the publishing journal and issue.
	Journal Journal `json:"journal" yaml:"journal"`

	// PubDate is the (possibly partial) publication date.
	PubDate PubDate `json:"pub_date" yaml:"pub_date"`

	// MeshTerms are the MeSH descriptor names, deduplicated, in document order.
	MeshTerms []string `json:"mesh_terms,omitempty" yaml:"mesh_terms,omitempty"`

	// Keywords are author-supplied keywords.
	Keywords []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`

	// Chemicals are substance names from the chemical list.
	Chemicals []string `json:"chemicals,omitempty" yaml:"chemicals,omitempty"`

	// PubTypes are the publication types (e.g. "Journal Article", "Review").
	PubTypes []string `json:"pub_types,omitempty" yaml:"pub_types,omitempty"`

	// ArticleIDs maps id type to value for the secondary identifiers
	// carried in PubmedData (e.g. "doi", "pmc").
	ArticleIDs map[string]string `json:"article_ids,omitempty" yaml:"article_ids,omitempty"`

	// FragmentHash is the checksum of the normalized source fragment the
	// record was decoded from. Re-ingesting an identical fragment is a no-op.
	FragmentHash uint64 `json:"fragment_hash" yaml:"fragment_hash"`
}

// AuthorRef is one entry from an article's author list. It has no lifecycle
// of its own; it is owned by exactly one Record.
type AuthorRef struct {
	LastName       string   `json:"last_name,omitempty" yaml:"last_name,omitempty"`
	ForeName       string   `json:"fore_name,omitempty" yaml:"fore_name,omitempty"`
	Initials       string   `json:"initials,omitempty" yaml:"initials,omitempty"`
	CollectiveName string   `json:"collective_name,omitempty" yaml:"collective_name,omitempty"`
	Affiliations   []string `json:"affiliations,omitempty" yaml:"affiliations,omitempty"`
}

// Journal holds the journal and issue fields of a record.
type Journal struct {
	Title     string `json:"title,omitempty" yaml:"title,omitempty"`
	ISOAbbrev string `json:"iso_abbrev,omitempty" yaml:"iso_abbrev,omitempty"`
	ISSN      string `json:"issn,omitempty" yaml:"issn,omitempty"`
	ISSNType  string `json:"issn_type,omitempty" yaml:"issn_type,omitempty"`
	Volume    string `json:"volume,omitempty" yaml:"volume,omitempty"`
	Issue     string `json:"issue,omitempty" yaml:"issue,omitempty"`
}

// PubDate is a partial date: Year is required for the date to count as
// present; Month and Day may be zero.
type PubDate struct {
	Year  int `json:"year,omitempty" yaml:"year,omitempty"`
	Month int `json:"month,omitempty" yaml:"month,omitempty"`
	Day   int `json:"day,omitempty" yaml:"day,omitempty"`
}

// IsZero reports whether no date was decoded.
func (d PubDate) IsZero() bool { return d.Year == 0 }

// String renders the date as YYYY, YYYY-MM, or YYYY-MM-DD depending on
// which parts are present.
func (d PubDate) String() string {
	switch {
	case d.Year == 0:
		return ""
	case d.Month == 0:
		return fmt.Sprintf("%04d", d.Year)
	case d.Day == 0:
		return fmt.Sprintf("%04d-%02d", d.Year, d.Month)
	default:
		return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
	}
}

// Clone returns a deep copy of the record. The collection hands out clones
// so callers can never mutate indexed state through a returned value.
func (r Record) Clone() Record {
	out := r
	if r.Authors != nil {
		out.Authors = make([]AuthorRef, len(r.Authors))
		for i, a := range r.Authors {
			out.Authors[i] = a
			if a.Affiliations != nil {
				out.Authors[i].Affiliations = append([]string(nil), a.Affiliations...)
			}
		}
	}
	out.MeshTerms = cloneStrings(r.MeshTerms)
	out.Keywords = cloneStrings(r.Keywords)
	out.Chemicals = cloneStrings(r.Chemicals)
	out.PubTypes = cloneStrings(r.PubTypes)
	if r.ArticleIDs != nil {
		out.ArticleIDs = make(map[string]string, len(r.ArticleIDs))
		for k, v := range r.ArticleIDs {
			out.ArticleIDs[k] = v
		}
	}
	return out
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}

// Citation renders a short derived citation string for display:
// "Smith J, Doe A. Title. Journal. 2021;12(3)." Fields that are absent are
// skipped. Computed on demand, never stored.
func (r Record) Citation() string {
	var b strings.Builder

	names := make([]string, 0, len(r.Authors))
	for _, a := range r.Authors {
		switch {
		case a.CollectiveName != "":
			names = append(names, a.CollectiveName)
		case a.LastName != "" && a.Initials != "":
			names = append(names, a.LastName+" "+a.Initials)
		case a.LastName != "":
			names = append(names, a.LastName)
		}
	}
	if len(names) > 0 {
		b.WriteString(strings.Join(names, ", "))
		b.WriteString(". ")
	}
	if r.Title != "" {
		b.WriteString(strings.TrimRight(r.Title, "."))
		b.WriteString(". ")
	}
	if r.Journal.Title != "" {
		b.WriteString(r.Journal.Title)
		b.WriteString(". ")
	}
	if !r.PubDate.IsZero() {
		b.WriteString(fmt.Sprintf("%d", r.PubDate.Year))
		if r.Journal.Volume != "" {
			b.WriteString(";" + r.Journal.Volume)
			if r.Journal.Issue != "" {
				b.WriteString("(" + r.Journal.Issue + ")")
			}
		}
		b.WriteString(".")
	}
	return strings.TrimSpace(b.String())
}
