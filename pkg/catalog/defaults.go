package catalog

import (
	"regexp"

	"github.com/ekaya-inc/ekaya-nlsql/pkg/models"
)

// defaultRolePatterns are matched against normalized column names
// (lower-case, separators collapsed to "_"). Group order decides ties.
var defaultRolePatterns = []struct {
	role     models.SemanticRole
	patterns []string
}{
	{models.RoleIdentifier, []string{
		`^(id|uuid|guid|pk|key)$`,
		`(^|_)(id|uuid|guid|key|sku)$`,
		`^(id|pk)_`,
		`(^|_)(order|invoice|transaction|customer|product|row|record|account|employee|user|item)_(no|num|number|code|ref)$`,
	}},
	{models.RoleName, []string{
		`(^|_)(name|title|full_name|first_name|last_name|surname|fname|lname|username)($|_)`,
		`^(customer|client|vendor|supplier|company|employee|manufacturer)$`,
	}},
	{models.RoleMonetary, []string{
		`(^|_)(sales|revenue|price|cost|amount|profit|income|expense|expenses|spend|budget|fee|fees|salary|payment|balance|margin|usd|eur|gbp|turnover|earnings)($|_)`,
	}},
	{models.RoleQuantity, []string{
		`(^|_)(quantity|qty|units|volume|count|items|pieces|stock|inventory|headcount)($|_)`,
		`^(num|number)_of_`,
	}},
	{models.RoleTemporal, []string{
		`(^|_)(date|time|timestamp|datetime|day|month|year|quarter|week|period|created|updated|modified)($|_)`,
		`_(at|on|dt)$`,
		`^(dob|birthday|birthdate)$`,
	}},
	{models.RoleGeographic, []string{
		`(^|_)(region|country|state|province|city|town|county|district|zip|zipcode|postal|postcode|address|street|location|territory|latitude|longitude|lat|lon|lng|continent|market)($|_)`,
	}},
	{models.RoleCategorical, []string{
		`(^|_)(category|subcategory|segment|type|class|group|status|mode|channel|department|tier|level|brand|gender|industry|kind|genre|priority|stage)($|_)`,
	}},
	{models.RoleContact, []string{
		`(^|_)(email|e_mail|phone|mobile|telephone|tel|fax|contact|url|website)($|_)`,
	}},
}

// defaultSlots is the semantic slot catalogue. Patterns are matched as
// substrings of the lower-cased column name.
var defaultSlots = []Slot{
	{Name: "customer_name", Patterns: []string{"customer_name", "customer name", "customer", "client", "buyer", "name"}},
	{Name: "sales", Patterns: []string{"sales", "revenue", "amount", "turnover", "total"}, NumericOnly: true},
	{Name: "region", Patterns: []string{"region", "territory", "area", "zone", "market"}},
	{Name: "product_name", Patterns: []string{"product_name", "product name", "product", "item", "article"}},
	{Name: "order_id", Patterns: []string{"order_id", "order id", "order_no", "order number", "invoice", "transaction_id", "transaction id"}},
	{Name: "quantity", Patterns: []string{"quantity", "qty", "units", "volume", "count"}, NumericOnly: true},
	{Name: "profit", Patterns: []string{"profit", "margin", "earnings", "net income"}, NumericOnly: true},
	{Name: "category", Patterns: []string{"category", "segment", "type", "class", "group"}},
	{Name: "date", Patterns: []string{"order_date", "order date", "date", "timestamp", "time", "created", "period"}},
	{Name: "price", Patterns: []string{"unit_price", "unit price", "price", "cost", "rate"}, NumericOnly: true},
	{Name: "discount", Patterns: []string{"discount", "rebate"}, NumericOnly: true},
	{Name: "city", Patterns: []string{"city", "town"}},
	{Name: "state", Patterns: []string{"state", "province"}},
	{Name: "country", Patterns: []string{"country", "nation"}},
	{Name: "segment", Patterns: []string{"segment"}},
	{Name: "ship_mode", Patterns: []string{"ship_mode", "ship mode", "shipping", "delivery"}},
	{Name: "customer_id", Patterns: []string{"customer_id", "customer id", "client_id", "client id"}},
	{Name: "product_id", Patterns: []string{"product_id", "product id", "sku", "item_id", "item id"}},
	{Name: "email", Patterns: []string{"email", "e-mail", "mail"}},
}

var defaultGroups = compileDefaults()

func compileDefaults() []RoleGroup {
	groups := make([]RoleGroup, 0, len(defaultRolePatterns))
	for _, g := range defaultRolePatterns {
		group := RoleGroup{Role: g.role}
		for _, p := range g.patterns {
			group.Patterns = append(group.Patterns, regexp.MustCompile(p))
		}
		groups = append(groups, group)
	}
	return groups
}

// Default returns the built-in catalogue.
func Default() *Catalog {
	return &Catalog{
		roleGroups: append([]RoleGroup(nil), defaultGroups...),
		slots:      append([]Slot(nil), defaultSlots...),
	}
}
