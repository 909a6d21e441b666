// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package decode

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pdiddy/pmcollect/internal/xmlstream"
	"github.com/pdiddy/pmcollect/pkg/types"
)

// RecordElement is the element delimiting one record inside the container.
const RecordElement = "PubmedArticle"

// mode selects how repeated occurrences of a mapped path combine.
type mode int

const (
	// modeScalar keeps a single value; a duplicate overwrites the first
	// (last-seen-wins) and raises a duplicate-field warning.
	modeScalar mode = iota
	// modeConcat joins repeated occurrences with a space, in document
	// order (structured abstracts arrive as several AbstractText parts).
	modeConcat
	// modeList appends each occurrence to an ordered sequence.
	modeList
)

// rule maps one element path to a typed Record field. Paths are relative to
// the record element, segments joined with "/". Elements whose path is not
// in the table are ignored, so additions to the upstream DTD do not break
// decoding.
type rule struct {
	// field names the Record field the rule feeds, for the startup
	// completeness check.
	field string
	mode  mode
	apply func(b *builder, text string, attrs []xmlstream.Attr)
}

// fieldRules is the fixed schema table: element path → field + coercion.
var fieldRules = map[string]rule{
	"MedlineCitation/PMID": {field: "id", mode: modeScalar, apply: func(b *builder, text string, attrs []xmlstream.Attr) {
		b.rec.ID = text
		if v, err := strconv.Atoi(attrValue(attrs, "Version")); err == nil {
			b.rec.Version = v
		}
	}},
	"MedlineCitation/Article/ArticleTitle": {field: "title", mode: modeScalar, apply: func(b *builder, text string, _ []xmlstream.Attr) {
		b.rec.Title = text
	}},
	"MedlineCitation/Article/VernacularTitle": {field: "vernacular_title", mode: modeScalar, apply: func(b *builder, text string, _ []xmlstream.Attr) {
		b.rec.VernacularTitle = text
	}},
	"MedlineCitation/Article/Abstract/AbstractText": {field: "abstract", mode: modeConcat, apply: func(b *builder, text string, _ []xmlstream.Attr) {
		if b.rec.Abstract != "" {
			b.rec.Abstract += " "
		}
		b.rec.Abstract += text
	}},
	"MedlineCitation/Article/Abstract/CopyrightInformation": {field: "copyright_info", mode: modeScalar, apply: func(b *builder, text string, _ []xmlstream.Attr) {
		b.rec.CopyrightInfo = text
	}},
	"MedlineCitation/Article/Language": {field: "language", mode: modeScalar, apply: func(b *builder, text string, _ []xmlstream.Attr) {
		b.rec.Language = text
	}},

	"MedlineCitation/Article/Journal/Title": {field: "journal", mode: modeScalar, apply: func(b *builder, text string, _ []xmlstream.Attr) {
		b.rec.Journal.Title = text
	}},
	"MedlineCitation/Article/Journal/ISOAbbreviation": {field: "journal", mode: modeScalar, apply: func(b *builder, text string, _ []xmlstream.Attr) {
		b.rec.Journal.ISOAbbrev = text
	}},
	"MedlineCitation/Article/Journal/ISSN": {field: "journal", mode: modeScalar, apply: func(b *builder, text string, attrs []xmlstream.Attr) {
		b.rec.Journal.ISSN = text
		b.rec.Journal.ISSNType = attrValue(attrs, "IssnType")
	}},
	"MedlineCitation/Article/Journal/JournalIssue/Volume": {field: "journal", mode: modeScalar, apply: func(b *builder, text string, _ []xmlstream.Attr) {
		b.rec.Journal.Volume = text
	}},
	"MedlineCitation/Article/Journal/JournalIssue/Issue": {field: "journal", mode: modeScalar, apply: func(b *builder, text string, _ []xmlstream.Attr) {
		b.rec.Journal.Issue = text
	}},

	"MedlineCitation/Article/Journal/JournalIssue/PubDate/Year": {field: "pub_date", mode: modeScalar, apply: func(b *builder, text string, _ []xmlstream.Attr) {
		b.dateYear = text
	}},
	"MedlineCitation/Article/Journal/JournalIssue/PubDate/Month": {field: "pub_date", mode: modeScalar, apply: func(b *builder, text string, _ []xmlstream.Attr) {
		b.dateMonth = text
	}},
	"MedlineCitation/Article/Journal/JournalIssue/PubDate/Day": {field: "pub_date", mode: modeScalar, apply: func(b *builder, text string, _ []xmlstream.Attr) {
		b.dateDay = text
	}},
	"MedlineCitation/Article/Journal/JournalIssue/PubDate/MedlineDate": {field: "pub_date", mode: modeScalar, apply: func(b *builder, text string, _ []xmlstream.Attr) {
		b.medlineDate = text
	}},

	"MedlineCitation/Article/AuthorList/Author/LastName": {field: "authors", mode: modeScalar, apply: func(b *builder, text string, _ []xmlstream.Attr) {
		if b.author != nil {
			b.author.LastName = text
		}
	}},
	"MedlineCitation/Article/AuthorList/Author/ForeName": {field: "authors", mode: modeScalar, apply: func(b *builder, text string, _ []xmlstream.Attr) {
		if b.author != nil {
			b.author.ForeName = text
		}
	}},
	"MedlineCitation/Article/AuthorList/Author/Initials": {field: "authors", mode: modeScalar, apply: func(b *builder, text string, _ []xmlstream.Attr) {
		if b.author != nil {
			b.author.Initials = text
		}
	}},
	"MedlineCitation/Article/AuthorList/Author/CollectiveName": {field: "authors", mode: modeScalar, apply: func(b *builder, text string, _ []xmlstream.Attr) {
		if b.author != nil {
			b.author.CollectiveName = text
		}
	}},
	"MedlineCitation/Article/AuthorList/Author/AffiliationInfo/Affiliation": {field: "authors", mode: modeList, apply: func(b *builder, text string, _ []xmlstream.Attr) {
		if b.author != nil {
			b.author.Affiliations = append(b.author.Affiliations, text)
		}
	}},

	"MedlineCitation/MeshHeadingList/MeshHeading/DescriptorName": {field: "mesh_terms", mode: modeList, apply: func(b *builder, text string, _ []xmlstream.Attr) {
		b.addMeshTerm(text)
	}},
	"MedlineCitation/KeywordList/Keyword": {field: "keywords", mode: modeList, apply: func(b *builder, text string, _ []xmlstream.Attr) {
		b.rec.Keywords = append(b.rec.Keywords, text)
	}},
	"MedlineCitation/ChemicalList/Chemical/NameOfSubstance": {field: "chemicals", mode: modeList, apply: func(b *builder, text string, _ []xmlstream.Attr) {
		b.rec.Chemicals = append(b.rec.Chemicals, text)
	}},
	"MedlineCitation/Article/PublicationTypeList/PublicationType": {field: "pub_types", mode: modeList, apply: func(b *builder, text string, _ []xmlstream.Attr) {
		b.rec.PubTypes = append(b.rec.PubTypes, text)
	}},

	"PubmedData/ArticleIdList/ArticleId": {field: "article_ids", mode: modeList, apply: func(b *builder, text string, attrs []xmlstream.Attr) {
		idType := attrValue(attrs, "IdType")
		if idType == "" {
			idType = "pubmed"
		}
		if b.rec.ArticleIDs == nil {
			b.rec.ArticleIDs = make(map[string]string)
		}
		b.rec.ArticleIDs[idType] = text
	}},
}

// group marks element paths whose subtree assembles a compound value.
type group struct {
	enter func(b *builder)
	exit  func(b *builder, offset int64)
}

var groupRules = map[string]group{
	"MedlineCitation/Article/AuthorList/Author": {
		enter: func(b *builder) { b.author = &types.AuthorRef{} },
		exit: func(b *builder, _ int64) {
			if a := b.author; a != nil &&
				(a.LastName != "" || a.ForeName != "" || a.Initials != "" ||
					a.CollectiveName != "" || len(a.Affiliations) > 0) {
				b.rec.Authors = append(b.rec.Authors, *a)
			}
			b.author = nil
		},
	},
	"MedlineCitation/Article/Journal/JournalIssue/PubDate": {
		exit: func(b *builder, offset int64) { b.finishPubDate(offset) },
	},
}

// schemaFields is the set of Record fields the table must cover. Validated
// at startup so a gap in the table is caught when the package loads, not
// silently at decode time.
var schemaFields = []string{
	"id", "title", "vernacular_title", "abstract", "copyright_info",
	"language", "journal", "pub_date", "authors", "mesh_terms",
	"keywords", "chemicals", "pub_types", "article_ids",
}

func validateSchema() error {
	covered := make(map[string]bool, len(fieldRules))
	for path, r := range fieldRules {
		if r.apply == nil {
			return fmt.Errorf("schema rule %q has no apply function", path)
		}
		if r.field == "" {
			return fmt.Errorf("schema rule %q names no record field", path)
		}
		covered[r.field] = true
	}
	for _, f := range schemaFields {
		if !covered[f] {
			return fmt.Errorf("record field %q has no schema rule", f)
		}
	}
	return nil
}

func init() {
	if err := validateSchema(); err != nil {
		panic("decode: invalid schema table: " + err.Error())
	}
}

func attrValue(attrs []xmlstream.Attr, name string) string {
	for _, a := range attrs {
		if a.Name == name {
			return a.Value
		}
	}
	return ""
}

// months maps PubMed month names to their numbers.
var months = map[string]int{
	"Jan": 1, "Feb": 2, "Mar": 3, "Apr": 4, "May": 5, "Jun": 6,
	"Jul": 7, "Aug": 8, "Sep": 9, "Oct": 10, "Nov": 11, "Dec": 12,
}

// parseMonth accepts either a numeric month or a PubMed month name.
func parseMonth(s string) (int, bool) {
	if n, err := strconv.Atoi(s); err == nil && n >= 1 && n <= 12 {
		return n, true
	}
	if n, ok := months[s]; ok {
		return n, true
	}
	return 0, false
}

// daysIn returns the number of days in a month, treating every year as a
// leap year: dump dates like "Feb 29" in a non-leap year are clamped to 29
// rather than rejected.
func daysIn(month int) int {
	switch month {
	case 1, 3, 5, 7, 8, 10, 12:
		return 31
	case 4, 6, 9, 11:
		return 30
	case 2:
		return 29
	default:
		return 31
	}
}

// yearFromMedlineDate extracts the leading year of a MedlineDate range such
// as "1998 Dec-1999 Jan" or "2000 Spring".
func yearFromMedlineDate(s string) (int, bool) {
	f := strings.Fields(s)
	if len(f) == 0 {
		return 0, false
	}
	y, err := strconv.Atoi(f[0])
	if err != nil || y < 1000 || y > 9999 {
		return 0, false
	}
	return y, true
}
