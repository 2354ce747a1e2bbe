package catalog

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// BarcodeID builds the printable id of a product: "<id>-<first 3 letters of name>-<last 3 of tenant>",
// both parts upper-cased. Short names or tenants are used whole.
func BarcodeID(productID int64, name, tenantDB string) string {
	name = strings.TrimSpace(name)
	head := name
	if utf8.RuneCountInString(name) > 3 {
		head = string([]rune(name)[:3])
	}
	tail := tenantDB
	if n := utf8.RuneCountInString(tenantDB); n > 3 {
		tail = string([]rune(tenantDB)[n-3:])
	}
	return fmt.Sprintf("%d-%s-%s", productID, strings.ToUpper(head), strings.ToUpper(tail))
}

// BarcodePath is the image file name stored for a barcode id. Rendering happens elsewhere.
func BarcodePath(barcodeID string) string {
	return "barcode_" + barcodeID + ".png"
}
