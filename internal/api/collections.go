package api

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/riyad899/Jtech-sub000/internal/catalog"
	"github.com/riyad899/Jtech-sub000/internal/repository"
)

var ErrValidation = errors.New("invalid document")

type access int

const (
	accessPublic access = iota
	accessOwner         // signed-in users see their own documents, admins see all
	accessAdmin
)

type collection struct {
	// each entry lists alternative field names, one of which must be present
	required [][]string
	filters  []string // fields a list request may filter on by equality
	read     access
	create   access
	kind     catalog.Kind
}

var collections = map[string]collection{
	"products": {
		required: [][]string{{"name", "title"}, {"price"}},
		filters:  []string{"category", "name", "title"},
		read:     accessPublic, create: accessAdmin, kind: catalog.KindProduct,
	},
	"services": {
		required: [][]string{{"name", "title"}, {"price"}},
		filters:  []string{"category", "name", "title"},
		read:     accessPublic, create: accessAdmin, kind: catalog.KindService,
	},
	"orders": {
		required: [][]string{{"productId"}, {"quantity"}},
		filters:  []string{"email", "userId", "productId", "transactionId", "status"},
		read:     accessOwner, create: accessOwner,
	},
	"users":    {required: [][]string{{"email"}}, filters: []string{"email", "role"}, read: accessAdmin, create: accessPublic},
	"messages": {required: [][]string{{"email"}, {"message"}}, filters: []string{"email"}, read: accessAdmin, create: accessPublic},
	"team":     {filters: []string{"category"}, read: accessPublic, create: accessAdmin},
	"jobs":     {filters: []string{"category"}, read: accessPublic, create: accessAdmin},
	"courses":  {filters: []string{"category"}, read: accessPublic, create: accessAdmin},
}

// listFilter turns query parameters into an equality filter. Only the
// collection's filter fields are accepted.
func (c collection) listFilter(q url.Values) (map[string]any, error) {
	filter := make(map[string]any, len(q))
	for k, vs := range q {
		if !slices.Contains(c.filters, k) {
			return nil, fmt.Errorf("%w: cannot filter on %q", repository.ErrInvalidFilter, k)
		}
		if len(vs) > 0 {
			filter[k] = vs[0]
		}
	}
	return filter, nil
}

func (c collection) validate(doc map[string]any) error {
	var missing []string
	for _, alts := range c.required {
		if !hasAny(doc, alts) {
			missing = append(missing, strings.Join(alts, "|"))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrValidation, strings.Join(missing, ", "))
	}

	if c.kind != "" {
		// the storefront must be able to read back what is written here
		candidate := make(map[string]any, len(doc)+1)
		for k, v := range doc {
			candidate[k] = v
		}
		candidate["_id"] = "new"
		if _, err := catalog.FromDocument(c.kind, candidate); err != nil {
			return fmt.Errorf("%w: %v", ErrValidation, err)
		}
	}
	return nil
}

func hasAny(doc map[string]any, keys []string) bool {
	for _, k := range keys {
		v, ok := doc[k]
		if !ok || v == nil {
			continue
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			continue
		}
		return true
	}
	return false
}
