package sanitizer

func NormalizeEquipments(items []string) []string {
	return SanitizeSlice(items, SanitizeKey)
}
