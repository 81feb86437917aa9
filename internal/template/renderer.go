package template

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/vhvplatform/go-billing-reminder/internal/domain"
	"github.com/vhvplatform/go-billing-reminder/internal/shared/errors"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([a-z_]+)\s*\}\}`)

// Renderer substitutes {{placeholder}} variables in template bodies.
// Extra holds static values (company name, support contact, payment
// instructions) merged into every render.
type Renderer struct {
	extra map[string]string
}

// NewRenderer creates a renderer with static extra variables
func NewRenderer(extra map[string]string) *Renderer {
	if extra == nil {
		extra = map[string]string{}
	}
	return &Renderer{extra: extra}
}

// Variables builds the substitution map for one customer at a point in
// time. Dates use the Brazilian day/month/year order.
func (r *Renderer) Variables(c *domain.Customer, now time.Time) map[string]string {
	days := domain.DaysUntil(c.Expiration, now)

	status := "active"
	if days < 0 {
		status = "overdue"
	}

	vars := map[string]string{
		"name":           c.Name,
		"phone":          c.Phone,
		"package":        c.Package,
		"value":          fmt.Sprintf("%.2f", c.Value),
		"server":         c.Server,
		"expiration":     c.Expiration.Format("02/01/2006"),
		"days_to_expire": fmt.Sprintf("%d", days),
		"status":         status,
		"date":           now.Format("02/01/2006"),
		"time":           now.Format("15:04"),
	}
	for k, v := range r.extra {
		vars[k] = v
	}
	return vars
}

// Render substitutes every known placeholder in the body. Unknown
// placeholders are left as-is so a bad template is visible in the
// message rather than silently blanked.
func (r *Renderer) Render(body string, c *domain.Customer, now time.Time) string {
	vars := r.Variables(c, now)
	return placeholderPattern.ReplaceAllStringFunc(body, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		if v, ok := vars[name]; ok {
			return v
		}
		return match
	})
}

// Placeholders returns the distinct placeholder names used in a body
func Placeholders(body string) []string {
	seen := map[string]bool{}
	for _, m := range placeholderPattern.FindAllStringSubmatch(body, -1) {
		seen[m[1]] = true
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Validate rejects template bodies that reference unknown placeholders
func (r *Renderer) Validate(body string) error {
	known := r.Variables(&domain.Customer{}, time.Now())

	var unknown []string
	for _, name := range Placeholders(body) {
		if _, ok := known[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		return errors.NewValidationError("unknown placeholders: "+strings.Join(unknown, ", "), nil)
	}
	return nil
}
