//go:build mage

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	emlPDF        = "data/who_eml.pdf"
	formularyFile = "data/who_eml_drug_list.txt"
)

// Formulary rebuilds the WHO EML lookup from data/who_eml.pdf. Set EML_PDF to
// use another copy of the Model List.
func Formulary() error {
	mg.Deps(Init, Build)

	src := os.Getenv("EML_PDF")
	if src == "" {
		src = emlPDF
	}
	if _, err := os.Stat(src); err != nil {
		return fmt.Errorf("WHO Model List not found at %s: %w", src, err)
	}
	return sh.RunV("bin/"+binName, "formulary", "build", src, "--out", formularyFile)
}
