package filter_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/agent-cards/internal/filter"
)

func Test_Decode_Accepts_Known_Keys_When_Values_Are_Meaningful(t *testing.T) {
	t.Parallel()

	got, err := filter.Decode([]byte(`{"assignee_ids":["jz"],"tag_ids":["#design"],"card_ids":[12,12,45]}`))
	require.NoError(t, err)

	want := filter.Context{
		AssigneeIDs: []string{"jz"},
		TagIDs:      []string{"design"},
		CardIDs:     []int64{12, 45},
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func Test_Decode_Rejects_Input_When_Schema_Is_Violated(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"unknown key":          `{"creator_id":["jz"]}`,
		"unknown null key":     `{"creator_id":null}`,
		"bad indexed_by":       `{"indexed_by":"popular"}`,
		"bad assignment":       `{"assignment_status":"assigned"}`,
		"bad closure":          `{"closure":"tomorrow"}`,
		"creation and closure": `{"creation":"today","closure":"today"}`,
		"string card id":       `{"card_ids":["12"]}`,
		"zero card id":         `{"card_ids":[0]}`,
		"not an object":        `["terms"]`,
		"trailing data":        `{"terms":["a"]} {}`,
	}

	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := filter.Decode([]byte(raw))
			if !errors.Is(err, filter.ErrInvalid) {
				t.Fatalf("Decode(%s) err = %v, want ErrInvalid", raw, err)
			}
		})
	}
}

func Test_Decode_Drops_Null_Values_Of_Known_Keys(t *testing.T) {
	t.Parallel()

	got, err := filter.Decode([]byte(`{"terms": null, "tag_ids": ["#bug"], "closure": null}`))
	require.NoError(t, err)

	if diff := cmp.Diff(filter.Context{TagIDs: []string{"bug"}}, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func Test_TagName_Strips_Marks_And_Whitespace_In_One_Pass(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]string{
		"#  #x":   "x",
		" ##bug ": "bug",
		"#":       "",
		"v2":      "v2",
		"#a #b":   "a #b",
	} {
		got := filter.TagName(in)
		assert.Equal(t, want, got, "TagName(%q)", in)
		assert.Equal(t, got, filter.TagName(got), "TagName(%q) not idempotent", in)
	}
}

func Test_Marshal_Omits_Empty_Fields_When_Normalized(t *testing.T) {
	t.Parallel()

	c := filter.Context{
		Terms:       []string{"123", " ", "cards"},
		CardIDs:     []int64{},
		CreatorIDs:  []string{""},
		AssigneeIDs: nil,
	}.Normalize()

	raw, err := json.Marshal(c)
	require.NoError(t, err)
	require.JSONEq(t, `{"terms":["123"]}`, string(raw))
}

func Test_Normalize_Is_Idempotent_Across_Serialization(t *testing.T) {
	t.Parallel()

	inputs := []filter.Context{
		{},
		{Terms: []string{" performance ", "performance"}, AssigneeIDs: []string{"jorge"}},
		{IndexedBy: "closed", Closure: "yesterday"},
		{TagIDs: []string{"#v2", "v2", "design"}, CardIDs: []int64{3, 1, 3}},
		{TagIDs: []string{"#  #x", " # #\u00a0#x ", "x"}},
		{AssignmentStatus: "unassigned", CollectionIDs: []string{"writebook"}, Creation: "lastweek"},
	}

	for _, in := range inputs {
		once := in.Normalize()

		raw, err := json.Marshal(once)
		require.NoError(t, err)

		decoded, err := filter.Decode(raw)
		require.NoError(t, err)

		if diff := cmp.Diff(once, decoded); diff != "" {
			t.Fatalf("json round trip changed context (-want +got):\n%s", diff)
		}

		fromParams, err := filter.FromParams(once.Params())
		require.NoError(t, err)

		if diff := cmp.Diff(once, fromParams); diff != "" {
			t.Fatalf("params round trip changed context (-want +got):\n%s", diff)
		}

		if diff := cmp.Diff(once, once.Normalize()); diff != "" {
			t.Fatalf("normalize not idempotent (-want +got):\n%s", diff)
		}
	}
}

func Test_Merge_Prefers_Overlay_When_Fields_Overlap(t *testing.T) {
	t.Parallel()

	base := filter.Context{AssigneeIDs: []string{"kevin"}, Creation: "today", Terms: []string{"login"}}
	overlay := filter.Context{AssigneeIDs: []string{"jz"}, Closure: "lastweek", IndexedBy: "closed"}

	got := filter.Merge(base, overlay)
	want := filter.Context{
		AssigneeIDs: []string{"jz"},
		Closure:     "lastweek",
		IndexedBy:   "closed",
		Terms:       []string{"login"},
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func Test_Without_Drops_Keys_When_Carrying_Params(t *testing.T) {
	t.Parallel()

	params := filter.Context{CardIDs: []int64{1}, TagIDs: []string{"design"}}.Params()
	rest := filter.Without(params, "card_ids[]")

	require.Empty(t, rest["card_ids[]"])
	require.Equal(t, []string{"design"}, rest["tag_ids[]"])
	require.Equal(t, []string{"1"}, params["card_ids[]"], "original params must not change")
}
