// Package types provides the Go structs for the agricultural registry entities.
// Documents travel as JSON; these structs describe their shape for seeding,
// the REST API and the form definitions that edit them.
package types

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Role identifies the profile of an acting user.
type Role int

const (
	// RoleAdmin manages other profiles and lands on the admin listing after edits.
	RoleAdmin Role = 0
	// RoleTechnician is a field technician; it cannot change its own role.
	RoleTechnician Role = 1
)

func (r Role) String() string { return strconv.Itoa(int(r)) }

// ParseRole accepts the numeric wire form ("0", "1").
func ParseRole(s string) (Role, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid role %q", s)
	}
	return Role(n), nil
}

// Address is a Brazilian postal address.
type Address struct {
	ZipCode     string `json:"zipCode"` // CEP
	UF          string `json:"uf"`      // 2-letter state code
	City        string `json:"city"`
	District    string `json:"district"`
	Street      string `json:"street"`
	HouseNumber string `json:"houseNumber,omitempty"`
	Reference   string `json:"reference,omitempty"`
}

// Ref points at another document by id.
type Ref struct {
	Value string `json:"value"`
}

// FarmingActivity describes what a producer farms and how often it earns.
type FarmingActivity struct {
	ActivityName Ref    `json:"activityName"`
	Period       string `json:"period"`
	AverageCash  string `json:"averageCash,omitempty"`
}

// Producer is a registered rural producer.
type Producer struct {
	ID              string          `json:"id,omitempty"`
	Name            string          `json:"name"`
	Nickname        string          `json:"nickname,omitempty"`
	BirthDate       string          `json:"birthDate"`
	CPF             string          `json:"cpf"`
	Phone           string          `json:"phone,omitempty"`
	Email           string          `json:"email,omitempty"`
	Address         Address         `json:"address"`
	FarmingActivity FarmingActivity `json:"farmingActivity"`
	Products        []Ref           `json:"products"`
	UpdatedBy       string          `json:"updatedBy,omitempty"`
}

// Product is an item a producer can offer.
type Product struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Activity is a farming activity (agriculture, apiculture, ...).
type Activity struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Profile is a user of the administration (a "manager" document).
type Profile struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	Nickname  string `json:"nickname,omitempty"`
	BirthDate string `json:"birthDate"`
	CPF       string `json:"cpf"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
	Role      string `json:"role"`
}

// ToDocument converts any of the entity structs into a generic JSON document.
func ToDocument(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Collection names served by the REST API.
const (
	CollectionProducers  = "producers"
	CollectionProducts   = "products"
	CollectionActivities = "activities"
	CollectionManagers   = "managers"
)

// Collections lists every collection the API serves.
var Collections = []string{
	CollectionProducers,
	CollectionProducts,
	CollectionActivities,
	CollectionManagers,
}
