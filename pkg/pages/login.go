// Package pages holds the page objects for the sample app's screens.
package pages

import (
	"github.com/devicelab-dev/appium-pom/pkg/core"
	"github.com/devicelab-dev/appium-pom/pkg/logger"
	"github.com/devicelab-dev/appium-pom/pkg/page"
)

var (
	usernameField = core.ID("com.example.app:id/username")
	passwordField = core.ID("com.example.app:id/password")
	loginButton   = core.ID("com.example.app:id/login_button")
	errorMessage  = core.ID("com.example.app:id/error_message")
)

// LoginPage is the sign-in screen.
type LoginPage struct {
	*page.Base
}

// NewLoginPage returns the login screen once its username field is visible.
func NewLoginPage(driver core.Driver, opts ...page.Option) (*LoginPage, error) {
	p := &LoginPage{Base: page.NewBase(driver, opts...)}
	if err := p.Load(p); err != nil {
		return nil, err
	}
	return p, nil
}

// IsLoaded implements page.Loadable.
func (p *LoginPage) IsLoaded() bool {
	return p.UI().IsVisible(usernameField, p.CheckTimeout())
}

// EnterUsername replaces the username field's contents.
func (p *LoginPage) EnterUsername(username string) error {
	return p.UI().Type(usernameField, username, true)
}

// EnterPassword replaces the password field's contents.
func (p *LoginPage) EnterPassword(password string) error {
	return p.UI().Type(passwordField, password, true)
}

// ClickLogin taps the login button.
func (p *LoginPage) ClickLogin() error {
	return p.UI().Click(loginButton, 0)
}

// SubmitCredentials fills both fields and taps login without waiting for
// the next screen.
func (p *LoginPage) SubmitCredentials(username, password string) error {
	if err := p.EnterUsername(username); err != nil {
		return err
	}
	if err := p.EnterPassword(password); err != nil {
		return err
	}
	p.UI().HideKeyboard()
	return p.ClickLogin()
}

// Login signs in and returns the home screen.
func (p *LoginPage) Login(username, password string) (*HomePage, error) {
	logger.Info("login as %q", username)
	if err := p.SubmitCredentials(username, password); err != nil {
		return nil, err
	}
	return NewHomePage(p.Driver(), p.Options()...)
}

// IsErrorDisplayed reports whether the error label is showing.
func (p *LoginPage) IsErrorDisplayed() bool {
	return p.UI().IsVisible(errorMessage, p.CheckTimeout())
}

// ErrorMessage returns the visible error text, or "" when none is shown.
func (p *LoginPage) ErrorMessage() string {
	if !p.IsErrorDisplayed() {
		return ""
	}
	text, err := p.UI().Text(errorMessage)
	if err != nil {
		logger.Warn("read error message: %v", err)
		return ""
	}
	return text
}
