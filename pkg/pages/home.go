package pages

import (
	"github.com/devicelab-dev/appium-pom/pkg/core"
	"github.com/devicelab-dev/appium-pom/pkg/page"
)

var (
	welcomeMessage = core.ID("com.example.app:id/welcome_message")
	menuButton     = core.ID("com.example.app:id/menu_button")
	logoutButton   = core.ID("com.example.app:id/logout_button")
)

// HomePage is the screen shown after signing in.
type HomePage struct {
	*page.Base
}

// NewHomePage returns the home screen once the welcome message is visible.
func NewHomePage(driver core.Driver, opts ...page.Option) (*HomePage, error) {
	p := &HomePage{Base: page.NewBase(driver, opts...)}
	if err := p.Load(p); err != nil {
		return nil, err
	}
	return p, nil
}

// IsLoaded implements page.Loadable.
func (p *HomePage) IsLoaded() bool {
	return p.IsLoggedIn()
}

// IsLoggedIn reports whether the welcome message is visible.
func (p *HomePage) IsLoggedIn() bool {
	return p.UI().IsVisible(welcomeMessage, p.CheckTimeout())
}

// WelcomeMessage returns the greeting text.
func (p *HomePage) WelcomeMessage() (string, error) {
	return p.UI().Text(welcomeMessage)
}

// OpenMenu taps the menu button.
func (p *HomePage) OpenMenu() error {
	return p.UI().Click(menuButton, 0)
}

// Logout signs out and returns the login screen.
func (p *HomePage) Logout() (*LoginPage, error) {
	if err := p.UI().Click(logoutButton, 0); err != nil {
		return nil, err
	}
	return NewLoginPage(p.Driver(), p.Options()...)
}
