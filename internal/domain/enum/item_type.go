package enum

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// ItemType is the catalog type tag of a reference item
type ItemType int

const (
	ItemTypeService    ItemType = 0
	ItemTypeProduct    ItemType = 1
	ItemTypeIngredient ItemType = 2
	ItemTypeRecipe     ItemType = 3
)

// Valid reports whether t is one of the declared types.
func (t ItemType) Valid() bool {
	return t >= ItemTypeService && t <= ItemTypeRecipe
}

func (t ItemType) String() string {
	if !t.Valid() {
		return "UNKNOWN"
	}
	return [...]string{"SERVICE", "PRODUCT", "INGREDIENT", "RECIPE"}[t]
}

func (t ItemType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *ItemType) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		var i int
		if err := json.Unmarshal(data, &i); err != nil {
			return err
		}
		if v := ItemType(i); v.Valid() {
			*t = v
			return nil
		}
		return fmt.Errorf("invalid item type %d", i)
	}
	v, ok := ParseItemType(str)
	if !ok {
		return fmt.Errorf("invalid item type %q", str)
	}
	*t = v
	return nil
}

func (t ItemType) Value() (driver.Value, error) {
	return int64(t), nil
}

func (t *ItemType) Scan(value interface{}) error {
	if value == nil {
		*t = ItemTypeProduct
		return nil
	}
	switch v := value.(type) {
	case int64:
		*t = ItemType(v)
	case int:
		*t = ItemType(v)
	}
	return nil
}

// ParseItemType maps a wire string to its ItemType
func ParseItemType(s string) (ItemType, bool) {
	switch s {
	case "SERVICE":
		return ItemTypeService, true
	case "PRODUCT":
		return ItemTypeProduct, true
	case "INGREDIENT":
		return ItemTypeIngredient, true
	case "RECIPE":
		return ItemTypeRecipe, true
	}
	return ItemTypeService, false
}
