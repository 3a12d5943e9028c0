// Package scenario runs data-driven login scenarios against the sample app.
package scenario

import (
	"errors"
	"fmt"
	"strings"

	"github.com/devicelab-dev/appium-pom/pkg/core"
	"github.com/devicelab-dev/appium-pom/pkg/page"
	"github.com/devicelab-dev/appium-pom/pkg/pages"
	"github.com/devicelab-dev/appium-pom/pkg/testdata"
)

// Expected results a login case may declare.
const (
	ExpectSuccess = "success"
	ExpectError   = "error"
)

// Login fields read from a test case.
const (
	FieldUsername        = "username"
	FieldPassword        = "password"
	FieldExpectedResult  = "expected_result"
	FieldExpectedMessage = "expected_message"
)

// Login drives the login screen with tc and checks the outcome.
//
// Success cases must reach the home screen and, when expected_message is set,
// show it in the welcome text. Error cases must show a non-empty error
// containing expected_message. With both credentials empty the login button
// is tapped without typing. Outcome mismatches are Assertion errors.
func Login(drv core.Driver, tc testdata.Case, opts ...page.Option) error {
	username := tc.String(FieldUsername)
	password := tc.String(FieldPassword)
	expected := tc.String(FieldExpectedResult)
	if expected == "" {
		expected = ExpectSuccess
	}
	message := tc.String(FieldExpectedMessage)

	if expected != ExpectSuccess && expected != ExpectError {
		return core.ErrInvalidFormat.WithMessage(fmt.Sprintf("unknown expected_result %q", expected))
	}

	login, err := pages.NewLoginPage(drv, opts...)
	if err != nil {
		return err
	}

	if username == "" && password == "" {
		if err := login.ClickLogin(); err != nil {
			return err
		}
		if expected == ExpectSuccess {
			return core.ErrConditionNotMet.WithMessage("login with empty credentials cannot succeed")
		}
		return checkError(login, message)
	}

	if expected == ExpectError {
		if err := login.SubmitCredentials(username, password); err != nil {
			return err
		}
		return checkError(login, message)
	}

	home, err := login.Login(username, password)
	if err != nil {
		if errors.Is(err, core.ErrPageNotLoaded) {
			return core.ErrConditionNotMet.WithMessage(
				fmt.Sprintf("login as %q did not reach the home screen", username)).WithCause(err)
		}
		return err
	}
	if !home.IsLoggedIn() {
		return core.ErrConditionNotMet.WithMessage("user is not logged in")
	}
	if message != "" {
		welcome, err := home.WelcomeMessage()
		if err != nil {
			return err
		}
		if !strings.Contains(welcome, message) {
			return core.ErrTextMismatch.WithMessage(
				fmt.Sprintf("expected message %q not found in %q", message, welcome))
		}
	}
	return nil
}

func checkError(login *pages.LoginPage, message string) error {
	shown := login.ErrorMessage()
	if shown == "" {
		return core.ErrConditionNotMet.WithMessage("error message should be displayed")
	}
	if message != "" && !strings.Contains(shown, message) {
		return core.ErrTextMismatch.WithMessage(
			fmt.Sprintf("expected error message %q not found in %q", message, shown))
	}
	return nil
}
