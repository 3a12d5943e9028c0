package mock

// Resource ids of the sample app served by LoginApp.
const (
	AppPackage  = "com.example.app"
	AppActivity = ".MainActivity"

	UsernameID = "com.example.app:id/username"
	PasswordID = "com.example.app:id/password"
	LoginID    = "com.example.app:id/login_button"
	ErrorID    = "com.example.app:id/error_message"
	WelcomeID  = "com.example.app:id/welcome_message"
	MenuID     = "com.example.app:id/menu_button"
	MenuPanel  = "com.example.app:id/menu_panel"
	LogoutID   = "com.example.app:id/logout_button"
)

// Messages shown by the sample app.
const (
	MsgRequired = "Username and password are required"
	MsgInvalid  = "Invalid username or password"
)

// LoginApp returns the login and home screens of the sample app.
// users maps valid usernames to passwords.
func LoginApp(users map[string]string) []Screen {
	login := Screen{
		Name:     "login",
		Activity: AppActivity,
		Package:  AppPackage,
		Elements: []Element{
			{ID: UsernameID, Class: "android.widget.EditText", Label: "Username"},
			{ID: PasswordID, Class: "android.widget.EditText", Label: "Password"},
			{ID: LoginID, Class: "android.widget.Button", Text: "Log in", OnClick: func(s *Server) {
				submitLogin(s, users)
			}},
			{ID: ErrorID, Class: "android.widget.TextView", Hidden: true},
		},
	}

	home := Screen{
		Name:     "home",
		Activity: ".HomeActivity",
		Package:  AppPackage,
		Elements: []Element{
			{ID: WelcomeID, Class: "android.widget.TextView"},
			{ID: MenuID, Class: "android.widget.ImageButton", Label: "Menu", OnClick: func(s *Server) {
				s.SetHidden(MenuPanel, false)
			}},
			{ID: MenuPanel, Class: "android.widget.LinearLayout", Hidden: true},
			{ID: LogoutID, Class: "android.widget.Button", Text: "Log out", OnClick: func(s *Server) {
				s.SetText(UsernameID, "")
				s.SetText(PasswordID, "")
				s.SetHidden(ErrorID, true)
				s.Show("login")
			}},
		},
	}

	return []Screen{login, home}
}

func submitLogin(s *Server, users map[string]string) {
	user, pass := s.TextOf(UsernameID), s.TextOf(PasswordID)

	showError := func(msg string) {
		s.SetText(ErrorID, msg)
		s.SetHidden(ErrorID, false)
	}

	switch {
	case user == "" || pass == "":
		showError(MsgRequired)
	case users[user] == pass:
		s.SetHidden(ErrorID, true)
		s.SetText(WelcomeID, "Welcome, "+user+"!")
		s.Show("home")
	default:
		showError(MsgInvalid)
	}
}
