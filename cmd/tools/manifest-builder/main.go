// cmd/tools/manifest-builder/main.go
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"storefront-push/pkg/registry"
)

var manifestPath string

func main() {
	initCmd := flag.NewFlagSet("init", flag.ExitOnError)
	addCmd := flag.NewFlagSet("add", flag.ExitOnError)
	removeCmd := flag.NewFlagSet("remove", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)

	for _, fs := range []*flag.FlagSet{initCmd, addCmd, removeCmd, validateCmd} {
		fs.StringVar(&manifestPath, "path", "configs/precache.json", "Path to manifest file")
	}

	// Init command flags
	version := initCmd.String("version", "1", "Manifest version")
	appName := initCmd.String("app", "storefront", "App name used for icon file names")

	// Add command flags
	assetPath := addCmd.String("asset", "", "Origin-relative asset path (e.g., /icons/icon-192x192.png)")
	kind := addCmd.String("kind", "", "Asset kind (icon, manifest, route, script, style)")
	description := addCmd.String("description", "", "Description")

	// Remove command flags
	removePath := removeCmd.String("asset", "", "Asset path to remove")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "init":
		initCmd.Parse(os.Args[2:])
		if err := initManifest(*version, *appName); err != nil {
			fmt.Printf("Error creating manifest: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Created manifest: %s\n", manifestPath)

	case "add":
		addCmd.Parse(os.Args[2:])
		if *assetPath == "" || *kind == "" {
			fmt.Println("Error: asset and kind are required for add.")
			addCmd.Usage()
			os.Exit(1)
		}
		err := update(func(m *registry.Manifest) error {
			return m.Add(registry.Asset{Path: *assetPath, Kind: *kind, Description: *description})
		})
		if err != nil {
			fmt.Printf("Error adding asset: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Added asset: %s\n", *assetPath)

	case "remove":
		removeCmd.Parse(os.Args[2:])
		err := update(func(m *registry.Manifest) error {
			if !m.Remove(*removePath) {
				return fmt.Errorf("asset %s not found", *removePath)
			}
			return nil
		})
		if err != nil {
			fmt.Printf("Error removing asset: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Removed asset: %s\n", *removePath)

	case "validate":
		validateCmd.Parse(os.Args[2:])
		m, err := registry.LoadManifest(manifestPath)
		if err == nil {
			err = m.Validate()
		}
		if err != nil {
			fmt.Printf("Manifest validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Manifest validation passed. Found %d assets.\n", len(m.Assets))

	case "help":
		fallthrough
	default:
		help()
	}
}

// initManifest writes the standard admin shell: web manifest, icons and the admin
// entry routes.
func initManifest(version, appName string) error {
	if _, err := os.Stat(manifestPath); err == nil {
		return fmt.Errorf("%s already exists", manifestPath)
	}
	m := &registry.Manifest{Version: version}
	for _, a := range []registry.Asset{
		{Path: "/manifest.json", Kind: registry.KindManifest, Description: appName + " web app manifest"},
		{Path: "/icons/icon-192x192.png", Kind: registry.KindIcon},
		{Path: "/icons/icon-512x512.png", Kind: registry.KindIcon},
		{Path: "/icons/badge-72x72.png", Kind: registry.KindIcon},
		{Path: "/admin", Kind: registry.KindRoute, Description: "admin shell"},
		{Path: "/admin/orders", Kind: registry.KindRoute},
		{Path: "/admin/bookings", Kind: registry.KindRoute},
	} {
		if err := m.Add(a); err != nil {
			return err
		}
	}
	return save(m)
}

func update(fn func(m *registry.Manifest) error) error {
	m, err := registry.LoadManifest(manifestPath)
	if err != nil {
		return fmt.Errorf("failed to load manifest: %w", err)
	}
	if err := fn(m); err != nil {
		return err
	}
	return save(m)
}

func save(m *registry.Manifest) error {
	m.LastUpdated = time.Now().Format(time.RFC3339)
	return registry.SaveManifest(m, manifestPath)
}

func help() {
	fmt.Print(`
Usage: manifest-builder <command> [flags]

Commands:
  init     Create a manifest with the standard admin shell assets
  add      Add an asset to the manifest
  remove   Remove an asset from the manifest
  validate Validate the manifest file
  help     Show this help message

Examples:
  manifest-builder init -version 3
  manifest-builder add -asset /admin/invoices -kind route
  manifest-builder remove -asset /admin/invoices
  manifest-builder validate -path configs/precache.json

Bump cache.version in configs/config.yaml whenever the asset list changes.
` + "\n")
}
