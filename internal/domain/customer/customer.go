// Package customer holds the canonical customer record shared by both stores.
package customer

// Address is the structured postal address of a customer.
type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zip_code"`
}

// Preferences holds contact opt-in flags.
type Preferences struct {
	Newsletter bool `json:"newsletter"`
	SMS        bool `json:"sms"`
}

// Record is the full projection of a customer. The same logical record is
// stored in both backing stores under the same ID.
//
// LoyaltyPoints, LifetimeValue and LastPurchaseDate are tracked only by the
// record store. They are pointers so that a record assembled from the search
// store alone can carry a nil "not available in this mode" sentinel while
// keeping the same shape in both operating modes.
type Record struct {
	ID               string      `json:"customer_id"`
	FullName         string      `json:"full_name"`
	Email            string      `json:"email"`
	Phone            string      `json:"phone"`
	Address          Address     `json:"address"`
	Preferences      Preferences `json:"preferences"`
	Tier             string      `json:"tier"`
	Category         string      `json:"category"`
	Status           string      `json:"status"`
	LoyaltyPoints    *int        `json:"loyalty_points"`
	LifetimeValue    *float64    `json:"lifetime_value"`
	LastPurchaseDate *string     `json:"last_purchase_date"`
}

// SearchProjection returns the searchable field values of the record, keyed
// by spec-table field name.
func (r *Record) SearchProjection() map[string]string {
	return map[string]string{
		FieldFullName: r.FullName,
		FieldEmail:    r.Email,
		FieldPhone:    r.Phone,
		FieldCategory: r.Category,
		FieldStatus:   r.Status,
	}
}

// StripRecordStoreFields clears the fields only the record store tracks,
// leaving the nil sentinel in their place.
func (r *Record) StripRecordStoreFields() {
	r.LoyaltyPoints = nil
	r.LifetimeValue = nil
	r.LastPurchaseDate = nil
}

// Searchable field names as registered in the encryption spec table.
const (
	FieldFullName = "full_name"
	FieldEmail    = "email"
	FieldPhone    = "phone"
	FieldCategory = "category"
	FieldStatus   = "status"
)
