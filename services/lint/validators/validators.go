// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validators is the built-in Apex rule table.
//
// The engine knows nothing about Apex; everything language-specific lives
// here as rules.Definition values. Each rule keeps the class name it had in
// earlier releases as an alias so existing --select and --ignore lists
// keep working.
package validators

import (
	"github.com/AleutianAI/apexlint/services/lint/rules"
)

// MapsAndSetsMarker silences the collection-key rules when it appears on
// the flagged line, conventionally in a trailing comment.
const MapsAndSetsMarker = "https://github.com/quantcast/apexlint/blob/master/MAPS-AND-SETS.md"

// SeeAllDataWindow is how many lines after a SeeAllData=true class
// annotation a SeeAllData=false method annotation is reported.
const SeeAllDataWindow = 20

// Rule names.
const (
	ObjectAsMapKey    = "object-as-map-key"
	ObjectAsSetMember = "object-as-set-member"
	FutureInTest      = "future-in-test"
	SeeAllData        = "see-all-data"
	TestMethodKeyword = "test-method-keyword"
	SeeAllDataIgnored = "see-all-data-ignored"
)

// baseTypes are immutable key types that are safe in maps and sets.
const baseTypes = `
	(?:
		(?:System\.)?
		(?:Blob|Boolean|Date|DateTime|Decimal|Double|Id|Integer|Long|String|Time|Type)
	|
		(?:Schema\.)?
		(?:SObjectField|SObjectType)
	)`

const (
	mapKeyDescription = "Objects used as map keys are hashed when inserted. Mutating the\n" +
		"object afterwards makes the entry unreachable.\n" +
		"See " + MapsAndSetsMarker

	setMemberDescription = "Objects stored in sets are hashed when inserted. Mutating the\n" +
		"object afterwards breaks contains() and remove().\n" +
		"See " + MapsAndSetsMarker

	futureDescription = "Futures are scheduled in a small finite queue that parallel test\n" +
		"runs can fill. Use @testSetup instead of @future to avoid mixed DML\n" +
		"errors, and Test.startTest()/Test.stopTest() to reset governor limits."

	seeAllDataDescription = "SeeAllData causes row-locking conflicts that fail deployments and\n" +
		"prevents concurrent test execution."

	seeAllDataIgnoredDescription = "A method-level SeeAllData=false annotation does not override a\n" +
		"class-level SeeAllData=true; the method still sees all org data."
)

// Definitions returns the built-in rules in registration order.
func Definitions() []rules.Definition {
	return []rules.Definition{
		{
			Name:         ObjectAsMapKey,
			Aliases:      []string{"NoObjectMapKeys"},
			Summary:      "Map key {{.Text}} might be mutable",
			Description:  mapKeyDescription,
			Suppressible: true,
			Marker:       MapsAndSetsMarker,
			Matcher:      rules.NotStringMatcher(`
				\b new \s+ Map \s* < (?> \s* )
				(?!`+baseTypes+`)
				(?<cursor> .+? )
				\s* ,`,
				rules.IgnoreCase, rules.Verbose),
		},
		{
			Name:         ObjectAsSetMember,
			Aliases:      []string{"NoObjectSetMembers"},
			Summary:      "Set member {{.Text}} might be mutable",
			Description:  setMemberDescription,
			Suppressible: true,
			Marker:       MapsAndSetsMarker,
			Matcher:      rules.NotStringMatcher(`
				\b new \s+ Set \s* < (?> \s* )
				(?!`+baseTypes+`)
				(?<cursor> .+? )
				\s* >`,
				rules.IgnoreCase, rules.Verbose),
		},
		{
			Name:        FutureInTest,
			Aliases:     []string{"NoFutureInTest"},
			Summary:     "@future used in test class",
			Description: futureDescription,
			Filenames:   []string{"*Test.cls", "TestUtils.cls", "UnitTestFactory.cls"},
			Matcher:     rules.NotStringMatcher(`(?<cursor> @ \s* future )`, rules.IgnoreCase, rules.Verbose),
		},
		{
			Name:        SeeAllData,
			Aliases:     []string{"NoSeeAllData"},
			Summary:     "SeeAllData used in @isTest",
			Description: seeAllDataDescription,
			Matcher:     rules.NotStringMatcher(`
				@ \s* isTest \s* \(
				[^)]*
				(?<cursor> \b SeeAllData \s* = .*? )
				\s* [,)]`,
				rules.IgnoreCase, rules.Verbose),
		},
		{
			Name:        TestMethodKeyword,
			Aliases:     []string{"NoTestMethod"},
			Summary:     "testMethod used instead of @isTest",
			Description: "The testMethod keyword is deprecated; annotate the method with @isTest.",
			Matcher:     rules.Single(`\b (?<cursor> testMethod ) \b`, rules.IgnoreCase, rules.Verbose),
		},
		{
			Name:        SeeAllDataIgnored,
			Summary:     "SeeAllData=false has no effect in a SeeAllData=true class",
			Description: seeAllDataIgnoredDescription,
			Severity:    rules.SeverityWarning,
			Matcher:     rules.AllOf(SeeAllDataWindow,
				rules.NotStringMatcher(`
					@ \s* isTest \s* \( [^)]* \b SeeAllData \s* = \s* true \b [^)]* \)
					(?= \s* (?: \w+ \s+ )* class \b )`,
					rules.IgnoreCase, rules.Verbose),
				rules.NotStringMatcher(`
					@ \s* isTest \s* \( [^)]* (?<cursor> \b SeeAllData \s* = \s* false \b ) [^)]* \)`,
					rules.IgnoreCase, rules.Verbose),
			),
		},
	}
}

// Register adds the built-in rules to reg.
func Register(reg *rules.Registry) error {
	return reg.RegisterAll(Definitions())
}

// Default returns a registry holding only the built-in rules.
func Default(opts ...rules.RegistryOption) *rules.Registry {
	reg := rules.NewRegistry(opts...)
	reg.MustRegister(Definitions()...)
	return reg
}
