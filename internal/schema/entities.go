package schema

import (
	"fmt"
	"sort"
)

// Entity names.
const (
	Users        = "users"
	CardDetails  = "card_details"
	StoreDetails = "store_details"
	Products     = "products"
	Orders       = "orders"
	DateEvents   = "date_events"
)

var countryCodes = []string{"GB", "US", "DE"}

var builtin = map[string]Entity{
	Users: {
		Name:  Users,
		Table: "dim_users",
		Columns: []Column{
			{Name: "user_uuid", Type: TypeString, Required: true},
			{Name: "first_name", Type: TypeString, Required: true},
			{Name: "last_name", Type: TypeString, Required: true},
			{Name: "date_of_birth", Type: TypeDate},
			{Name: "company", Type: TypeString},
			{Name: "email_address", Type: TypeString},
			{Name: "address", Type: TypeString},
			{Name: "country", Type: TypeCategory, Enum: []string{"United Kingdom", "United States", "Germany"}},
			{Name: "country_code", Type: TypeCategory, Required: true, Enum: countryCodes, Fixups: map[string]string{"GGB": "GB"}},
			{Name: "phone_number", Type: TypeString},
			{Name: "join_date", Type: TypeDate, Required: true},
		},
		DedupKey: []string{"user_uuid"},
	},
	CardDetails: {
		Name:  CardDetails,
		Table: "dim_card_details",
		Columns: []Column{
			{Name: "card_number", Type: TypeString, Required: true, Validator: "card_number"},
			{Name: "expiry_date", Type: TypeString, Required: true},
			{Name: "card_provider", Type: TypeCategory, Required: true},
			{Name: "date_payment_confirmed", Type: TypeDate},
		},
		DedupKey: []string{"card_number"},
	},
	StoreDetails: {
		Name:  StoreDetails,
		Table: "dim_store_details",
		Columns: []Column{
			{Name: "store_code", Type: TypeString, Required: true},
			{Name: "store_name", Type: TypeString, Validator: "store_name"},
			{Name: "address", Type: TypeString},
			{Name: "longitude", Type: TypeDecimal},
			{Name: "latitude", Type: TypeDecimal},
			{Name: "locality", Type: TypeString},
			{Name: "staff_numbers", Type: TypeInt},
			{Name: "opening_date", Type: TypeDate},
			{Name: "store_type", Type: TypeCategory, Enum: []string{"Local", "Super Store", "Mall Kiosk", "Outlet", "Web Portal"}},
			{Name: "country_code", Type: TypeCategory, Enum: countryCodes},
			{
				Name: "continent", Type: TypeCategory, Enum: []string{"Europe", "America"},
				Fixups: map[string]string{"eeEurope": "Europe", "eeAmerica": "America"},
			},
		},
		DedupKey: []string{"store_code"},
	},
	Products: {
		Name:  Products,
		Table: "dim_products",
		Columns: []Column{
			{Name: "product_id", Type: TypeString, Aliases: []string{"uuid"}},
			{Name: "name", Type: TypeString, Aliases: []string{"product_name"}},
			{Name: "price", Type: TypeDecimal, Required: true, Validator: "price", Aliases: []string{"product_price"}},
			{Name: "weight", Type: TypeDecimal, Measurement: true},
			{Name: "category", Type: TypeCategory},
			{Name: "ean", Type: TypeString, Aliases: []string{"EAN"}},
			{Name: "product_code", Type: TypeString},
			{Name: "date_added", Type: TypeDate},
			{
				Name: "removed", Type: TypeCategory, Enum: []string{"Still_available", "Removed"},
				Fixups: map[string]string{"Still_avaliable": "Still_available"},
			},
		},
		DedupKey: []string{"product_id", "name"},
	},
	Orders: {
		Name:  Orders,
		Table: "orders_table",
		Columns: []Column{
			{Name: "date_uuid", Type: TypeString, Required: true},
			{Name: "user_uuid", Type: TypeString, Required: true},
			{Name: "card_number", Type: TypeString, Required: true},
			{Name: "store_code", Type: TypeString, Required: true},
			{Name: "product_code", Type: TypeString, Required: true},
			{Name: "product_quantity", Type: TypeInt, Required: true},
		},
		DedupKey: []string{"date_uuid", "user_uuid", "product_code"},
	},
	DateEvents: {
		Name:  DateEvents,
		Table: "dim_date_times",
		Columns: []Column{
			{Name: "date_uuid", Type: TypeString, Required: true},
			{Name: "timestamp", Type: TypeString, Required: true},
			{Name: "day", Type: TypeInt, Required: true},
			{Name: "month", Type: TypeInt, Required: true},
			{Name: "year", Type: TypeInt, Required: true},
			{Name: "time_period", Type: TypeCategory, Enum: []string{"Morning", "Midday", "Evening", "Late_Hours"}},
		},
		DedupKey: []string{"date_uuid"},
	},
}

// Lookup returns the built-in entity with the given name.
func Lookup(name string) (Entity, error) {
	e, ok := builtin[name]
	if !ok {
		return Entity{}, fmt.Errorf("schema: unknown entity %q", name)
	}
	return e, nil
}

// Names lists the built-in entity names in sorted order.
func Names() []string {
	out := make([]string, 0, len(builtin))
	for n := range builtin {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
