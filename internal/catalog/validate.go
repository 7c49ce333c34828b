package catalog

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

func validateMint(title, description, imageURL, creator, price string) error {
	switch {
	case title == "":
		return invalid("title is required")
	case description == "":
		return invalid("description is required")
	case imageURL == "":
		return invalid("image URL is required")
	case creator == "":
		return invalid("creator is required")
	}
	return validatePrice(price)
}

func validatePurchase(buyer, price string) error {
	if buyer == "" {
		return invalid("buyer is required")
	}
	return validatePrice(price)
}

// plainDecimal is digits with an optional fractional part; no sign,
// exponent or trailing dot, so a stored price always displays as typed.
var plainDecimal = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

// validatePrice accepts strictly positive decimal quantities such as "0.5".
func validatePrice(price string) error {
	if price == "" {
		return invalid("price is required")
	}
	if !plainDecimal.MatchString(price) {
		return invalid(fmt.Sprintf("price %q is not a plain decimal number", price))
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return invalid(fmt.Sprintf("price %q is not a decimal number", price))
	}
	if !d.IsPositive() {
		return invalid("price must be greater than zero")
	}
	return nil
}

func trimImages(images []string) []string {
	var out []string
	for _, img := range images {
		if img = strings.TrimSpace(img); img != "" {
			out = append(out, img)
		}
	}
	return out
}
