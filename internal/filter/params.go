package filter

import (
	"fmt"
	"net/url"
	"strconv"
)

// Params renders the context as list query parameters. Array fields use the
// "name[]" convention; absent fields produce no parameter.
func (c Context) Params() url.Values {
	v := url.Values{}

	addAll := func(key string, values []string) {
		for _, s := range values {
			v.Add(key+"[]", s)
		}
	}

	addAll("terms", c.Terms)
	addAll("assignee_ids", c.AssigneeIDs)
	addAll("creator_ids", c.CreatorIDs)
	addAll("collection_ids", c.CollectionIDs)
	addAll("tag_ids", c.TagIDs)

	for _, id := range c.CardIDs {
		v.Add("card_ids[]", strconv.FormatInt(id, 10))
	}

	set := func(key, value string) {
		if value != "" {
			v.Set(key, value)
		}
	}

	set("indexed_by", c.IndexedBy)
	set("assignment_status", c.AssignmentStatus)
	set("creation", c.Creation)
	set("closure", c.Closure)

	return v
}

// FromParams parses parameters produced by [Context.Params]. Unknown
// parameters are ignored so callers can carry unrelated query state.
func FromParams(v url.Values) (Context, error) {
	c := Context{
		Terms:            v["terms[]"],
		IndexedBy:        v.Get("indexed_by"),
		AssigneeIDs:      v["assignee_ids[]"],
		AssignmentStatus: v.Get("assignment_status"),
		CreatorIDs:       v["creator_ids[]"],
		CollectionIDs:    v["collection_ids[]"],
		TagIDs:           v["tag_ids[]"],
		Creation:         v.Get("creation"),
		Closure:          v.Get("closure"),
	}

	for _, raw := range v["card_ids[]"] {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Context{}, fmt.Errorf("%w: card id %q", ErrInvalid, raw)
		}

		c.CardIDs = append(c.CardIDs, id)
	}

	c = c.Normalize()

	err := c.Validate()
	if err != nil {
		return Context{}, err
	}

	return c, nil
}

// Without returns the parameters minus the given keys.
func Without(v url.Values, keys ...string) url.Values {
	out := url.Values{}

	for k, values := range v {
		out[k] = append([]string(nil), values...)
	}

	for _, k := range keys {
		out.Del(k)
	}

	return out
}
