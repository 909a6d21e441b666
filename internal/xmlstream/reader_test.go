// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package xmlstream

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/pdiddy/pmcollect/pkg/types"
)

func collectEvents(t *testing.T, doc string, opts Options) ([]Event, error) {
	t.Helper()
	r := NewReader(strings.NewReader(doc), opts)
	var events []Event
	for {
		ev, err := r.Next()
		if err == io.EOF {
			return events, nil
		}
		if err != nil {
			return events, err
		}
		events = append(events, ev)
	}
}

func TestNextEventSequence(t *testing.T) {
	doc := `<?xml version="1.0"?>
<PubmedArticleSet>
  <PubmedArticle>
    <MedlineCitation>
      <PMID Version="1">1001</PMID>
    </MedlineCitation>
  </PubmedArticle>
</PubmedArticleSet>`

	events, err := collectEvents(t, doc, Options{})
	if err != nil {
		t.Fatalf("Next: %v", err)
	}

	want := []struct {
		kind  Kind
		name  string
		text  string
		depth int
	}{
		{KindStart, "PubmedArticleSet", "", 0},
		{KindStart, "PubmedArticle", "", 1},
		{KindStart, "MedlineCitation", "", 2},
		{KindStart, "PMID", "", 3},
		{KindText, "", "1001", 4},
		{KindEnd, "PMID", "", 3},
		{KindEnd, "MedlineCitation", "", 2},
		{KindEnd, "PubmedArticle", "", 1},
		{KindEnd, "PubmedArticleSet", "", 0},
	}

	if len(events) != len(want) {
		t.Fatalf("got %d events, want %d: %+v", len(events), len(want), events)
	}
	for i, w := range want {
		ev := events[i]
		if ev.Kind != w.kind || ev.Name != w.name || ev.Depth != w.depth {
			t.Errorf("event %d = {%v %q depth=%d}, want {%v %q depth=%d}",
				i, ev.Kind, ev.Name, ev.Depth, w.kind, w.name, w.depth)
		}
		if w.kind == KindText && ev.Text != w.text {
			t.Errorf("event %d text = %q, want %q", i, ev.Text, w.text)
		}
	}

	// PMID carries its Version attribute.
	pmid := events[3]
	if len(pmid.Attr) != 1 || pmid.Attr[0].Name != "Version" || pmid.Attr[0].Value != "1" {
		t.Errorf("PMID attrs = %+v, want Version=1", pmid.Attr)
	}
}

func TestWhitespaceAndNonElementsSkipped(t *testing.T) {
	doc := `<PubmedArticleSet><!-- a comment -->
  <?pi data?>
  <PubmedArticle></PubmedArticle>
</PubmedArticleSet>`

	events, err := collectEvents(t, doc, Options{})
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	for _, ev := range events {
		if ev.Kind == KindText {
			t.Errorf("unexpected text event %q", ev.Text)
		}
	}
}

func TestWrongRootIsStreamError(t *testing.T) {
	_, err := collectEvents(t, `<NotPubmed><x/></NotPubmed>`, Options{})
	var se *StreamError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *StreamError", err)
	}
	if se.Truncated {
		t.Error("wrong root reported as truncation")
	}
}

func TestTruncatedStream(t *testing.T) {
	doc := `<PubmedArticleSet><PubmedArticle><MedlineCitation><PMID>1001`

	_, err := collectEvents(t, doc, Options{})
	var se *StreamError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *StreamError", err)
	}
	if !se.Truncated {
		t.Errorf("StreamError not marked truncated: %v", se)
	}
}

func TestDeclaredCharsetHonored(t *testing.T) {
	// 0xE9 is "é" in ISO-8859-1 and invalid UTF-8 on its own.
	doc := `<?xml version="1.0" encoding="ISO-8859-1"?>` +
		"<PubmedArticleSet><PubmedArticle><T>caf\xe9</T></PubmedArticle></PubmedArticleSet>"

	events, err := collectEvents(t, doc, Options{})
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	var text string
	for _, ev := range events {
		if ev.Kind == KindText {
			text = ev.Text
		}
	}
	if text != "café" {
		t.Errorf("text = %q, want %q", text, "café")
	}
}

func TestInvalidUTF8ReplacedAndFlagged(t *testing.T) {
	var warnings []types.Warning
	doc := "<PubmedArticleSet><PubmedArticle><T>bad\xffbyte</T></PubmedArticle></PubmedArticleSet>"

	r := NewReader(strings.NewReader(doc), Options{Warn: func(w types.Warning) {
		warnings = append(warnings, w)
	}})
	var text string
	for {
		ev, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if ev.Kind == KindText {
			text = ev.Text
		}
	}

	if !strings.Contains(text, "�") {
		t.Errorf("text = %q, want replacement character", text)
	}
	if len(warnings) == 0 || warnings[0].Code != types.WarnMalformedText {
		t.Errorf("warnings = %+v, want one %s warning", warnings, types.WarnMalformedText)
	}
}

func TestUnescapedAmpersandTolerated(t *testing.T) {
	doc := `<PubmedArticleSet><PubmedArticle><T>salt &amp; pepper &undefined; mix</T></PubmedArticle></PubmedArticleSet>`

	events, err := collectEvents(t, doc, Options{})
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	var got string
	for _, ev := range events {
		if ev.Kind == KindText {
			got += ev.Text
		}
	}
	if !strings.Contains(got, "salt & pepper") {
		t.Errorf("text = %q, want decoded ampersand", got)
	}
}

func TestMismatchedCloseTagDoesNotKillStream(t *testing.T) {
	// </Wrong> closes nothing that is open: it must abort only the PMID
	// subtree. The second record still comes through.
	doc := `<PubmedArticleSet>
  <PubmedArticle><MedlineCitation><PMID>1</Wrong></MedlineCitation></PubmedArticle>
  <PubmedArticle><MedlineCitation><PMID>2</PMID></MedlineCitation></PubmedArticle>
</PubmedArticleSet>`

	var warnings []types.Warning
	r := NewReader(strings.NewReader(doc), Options{Warn: func(w types.Warning) {
		warnings = append(warnings, w)
	}})
	var starts int
	for {
		ev, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if ev.Kind == KindStart && ev.Name == "PubmedArticle" {
			starts++
		}
	}
	if starts != 2 {
		t.Errorf("saw %d PubmedArticle starts, want 2", starts)
	}
	if len(warnings) != 1 || warnings[0].Code != types.WarnUnclosedTag {
		t.Errorf("warnings = %+v, want one %s warning", warnings, types.WarnUnclosedTag)
	}
}

func TestAncestorCloseSynthesizesMissingEnds(t *testing.T) {
	// </MedlineCitation> arrives while <PMID> is still open: the reader
	// must close PMID first so the event stream stays balanced.
	doc := `<PubmedArticleSet>
  <PubmedArticle><MedlineCitation><PMID>1</MedlineCitation></PubmedArticle>
</PubmedArticleSet>`

	var warnings []types.Warning
	events, err := func() ([]Event, error) {
		r := NewReader(strings.NewReader(doc), Options{Warn: func(w types.Warning) {
			warnings = append(warnings, w)
		}})
		var evs []Event
		for {
			ev, err := r.Next()
			if err == io.EOF {
				return evs, nil
			}
			if err != nil {
				return evs, err
			}
			evs = append(evs, ev)
		}
	}()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}

	depth := 0
	for _, ev := range events {
		switch ev.Kind {
		case KindStart:
			depth++
		case KindEnd:
			depth--
		}
		if depth < 0 {
			t.Fatalf("unbalanced events: %+v", events)
		}
	}
	if depth != 0 {
		t.Fatalf("stream ended at depth %d, want 0", depth)
	}
	if len(warnings) != 1 || warnings[0].Code != types.WarnUnclosedTag {
		t.Errorf("warnings = %+v, want one %s warning", warnings, types.WarnUnclosedTag)
	}
}
