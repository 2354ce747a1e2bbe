package shared

import "fmt"

// ProvisionLockKey builds the redis key guarding creation of a tenant database.
func ProvisionLockKey(dbName string) string {
	return fmt.Sprintf("tenant:%s:provision:lock", dbName)
}
