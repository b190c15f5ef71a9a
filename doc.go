// Package hl7corrector validates HL7 v2.xml interchange messages against
// an external Gazelle validation service and corrects the defects the
// validator reports, looping until the message passes or no further
// progress can be made.
//
// # Quick Start
//
//	import (
//	    hc "github.com/gohl7/corrector"
//	    "github.com/gohl7/corrector/codetable"
//	    "github.com/gohl7/corrector/evs"
//	    "github.com/gohl7/corrector/rules"
//	)
//
//	registry := codetable.NewRegistry()
//	if err := registry.LoadDefaults(); err != nil {
//	    log.Fatal(err)
//	}
//
//	client := evs.NewClient(evs.WithAPIKey(key))
//	engine := rules.New(registry)
//	controller := hc.New(client, engine)
//
//	session, err := controller.Run(ctx, "booking.xml", message)
//	if session.Outcome == hc.OutcomePassed {
//	    os.WriteFile("booking-fixed.xml", session.FinalMessage, 0o644)
//	}
//	fmt.Println(session.Report())
//
// # Correction Loop
//
// Each session normalizes the message once, then alternates validation
// and correction:
//
//   - Validate: submit the current message and wait for the report
//   - Passed: no blocking diagnostics remain, the session ends
//   - Correct: apply the rule engine to the blocking diagnostics
//   - Stalled: no rule produced an edit, the session ends
//   - Exhausted: the iteration ceiling was reached with defects left
//
// Every edit is recorded, so the final session report explains exactly
// what was changed and why.
//
// # Correction Rules
//
//   - Invalid code: replace a code that is not a member of its value set
//     with a registry suggestion, or repair its coding system designator
//     when the code itself is valid
//   - Missing field: insert a placeholder for a required field
//   - Missing component: insert a placeholder for a required component
//
// Rules only edit locations the validator addressed; a correction never
// touches an unrelated part of the message.
package hl7corrector
