package main

import (
	"context"
	"fmt"

	"github.com/trezcool/karibu/core/registry"
)

func parseCategory(raw string) (registry.Category, error) {
	cat := registry.Category(raw)
	if !cat.IsValid() {
		return "", fmt.Errorf("unknown category %q (want one of %v)", raw, registry.AllCategories)
	}
	return cat, nil
}

func (cli *commandLine) listKeys(rawCat string) error {
	cats := registry.AllCategories
	if rawCat != "" {
		cat, err := parseCategory(rawCat)
		if err != nil {
			return err
		}
		cats = []registry.Category{cat}
	}

	reg, err := cli.store.ReadRegistry(context.Background())
	if err != nil {
		return err
	}
	for _, cat := range cats {
		keys := reg.Keys(cat)
		fmt.Printf("%s (%d):\n", cat, len(keys))
		for _, key := range keys {
			fmt.Printf("  %s\n", key)
		}
	}
	return nil
}

func (cli *commandLine) hasKey(rawCat, key string) error {
	cat, err := parseCategory(rawCat)
	if err != nil {
		return err
	}
	claimed, err := cli.regSvc.HasKey(context.Background(), cat, key)
	if err != nil {
		return err
	}
	fmt.Printf("%s/%s: claimed=%t\n", cat, registry.NormalizeKey(key), claimed)
	return nil
}

func (cli *commandLine) claimKey(rawCat, key string) error {
	cat, err := parseCategory(rawCat)
	if err != nil {
		return err
	}
	if err = cli.regSvc.ClaimKey(context.Background(), cat, key); err != nil {
		return err
	}
	fmt.Printf("%s/%s: claimed\n", cat, registry.NormalizeKey(key))
	return nil
}
