// Package archive defines the core types and interfaces shared by the
// newspaper page pipeline: issues, manifest references, image locators,
// fetch outcomes, and the collaborators that move them between stages.
package archive
