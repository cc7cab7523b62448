// Package testsupport holds helpers shared by package tests: temp-directory
// configs, store openers and fixture writers.
package testsupport
