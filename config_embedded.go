//go:build appcore_embedded

package appcore

func loadEnv(*Config, map[string]string) error { return nil }
