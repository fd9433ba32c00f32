package cache

const namespace = "mk:"

// KeyCatalogSnapshot is the key of the normalized catalog snapshot.
func KeyCatalogSnapshot(source string) string {
	if source == "" {
		source = "default"
	}
	return namespace + "catalog:" + source
}

// KeyDeliveryDirectory is the key of the cached delivery directory.
func KeyDeliveryDirectory() string {
	return namespace + "delivery:directory"
}

// KeySyncStatus is the key holding the last synchronization status.
func KeySyncStatus(name string) string {
	return namespace + "sync:" + name + ":status"
}
