package handler

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/labstack/echo/v4"
)

var pages = template.Must(template.New("login").Parse(`<!doctype html>
<html lang="es">
<head><meta charset="utf-8"><title>Iniciar sesión</title></head>
<body>
<form id="login">
  <label>Usuario <input name="username" autocomplete="username" required></label>
  <label>Contraseña <input name="password" type="password" autocomplete="current-password" required></label>
  <button type="submit">Entrar</button>
  <p id="error" role="alert"></p>
</form>
<script>
document.getElementById("login").addEventListener("submit", async (ev) => {
  ev.preventDefault();
  const form = new FormData(ev.target);
  const res = await fetch("/api/auth/login", {
    method: "POST",
    headers: {"Content-Type": "application/json"},
    credentials: "same-origin",
    body: JSON.stringify({username: form.get("username"), password: form.get("password")}),
  });
  const body = await res.json().catch(() => ({}));
  if (res.ok && body.ok) {
    window.location.assign({{.Landing}});
    return;
  }
  document.getElementById("error").textContent = body.error || "invalid username or password";
});
</script>
</body>
</html>
`))

func init() {
	template.Must(pages.New("dashboard").Parse(`<!doctype html>
<html lang="es">
<head><meta charset="utf-8"><title>Panel</title></head>
<body>
<p>{{.Name}} ({{.Role}})</p>
<button id="logout" type="button">Salir</button>
<script>
document.getElementById("logout").addEventListener("click", async () => {
  await fetch("/api/auth/logout", {method: "POST", credentials: "same-origin"}).catch(() => {});
  window.location.assign({{.Login}});
});
</script>
</body>
</html>
`))
}

// PageHandler serves the server-rendered pages guarded by the session gate.
type PageHandler struct {
	loginPath   string
	landingPath string
}

func NewPageHandler(loginPath, landingPath string) *PageHandler {
	return &PageHandler{loginPath: loginPath, landingPath: landingPath}
}

// Login renders the login form. The session gate has already redirected
// authenticated callers to the landing page.
func (h *PageHandler) Login(c echo.Context) error {
	return render(c, "login", map[string]string{"Landing": h.landingPath})
}

// Dashboard renders the landing page for the signed-in user.
func (h *PageHandler) Dashboard(c echo.Context) error {
	session, err := ctxSession(c)
	if err != nil {
		return err
	}
	return render(c, "dashboard", map[string]string{
		"Name":  session.Name,
		"Role":  string(session.Role.Name),
		"Login": h.loginPath,
	})
}

// Root redirects to the landing page.
func (h *PageHandler) Root(c echo.Context) error {
	return c.Redirect(http.StatusFound, h.landingPath)
}

func render(c echo.Context, name string, data any) error {
	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, name, data); err != nil {
		return err
	}
	return c.HTMLBlob(http.StatusOK, buf.Bytes())
}
