package email

import "html/template"

const baseStyle = `
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Helvetica, Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background: #1f2937; color: white; padding: 24px; border-radius: 8px 8px 0 0; }
        .content { background: #f9fafb; padding: 24px; border-radius: 0 0 8px 8px; }
        .btn { display: inline-block; background: #2563eb; color: white; padding: 12px 20px; text-decoration: none; border-radius: 6px; margin-top: 16px; }
        .footer { margin-top: 24px; font-size: 12px; color: #6b7280; text-align: center; }`

func loadTemplates() map[string]*template.Template {
	templates := make(map[string]*template.Template)

	templates["temporary_password"] = template.Must(template.New("temporary_password").Parse(`
<!DOCTYPE html>
<html>
<head><style>` + baseStyle + `
        .secret { font-family: monospace; font-size: 18px; background: white; padding: 12px; border-radius: 6px; }
</style></head>
<body>
<div class="container">
    <div class="header"><h2>Welcome to ORA Console</h2></div>
    <div class="content">
        <p>Hi {{.Name}},</p>
        <p>An account has been created for you. Sign in as <strong>{{.Email}}</strong> with this temporary password:</p>
        <p class="secret">{{.Password}}</p>
        <p>You will be asked to choose a new password after signing in.</p>
        <a href="{{.LoginURL}}" class="btn">Sign in</a>
    </div>
    <div class="footer">ORA Console</div>
</div>
</body>
</html>
`))

	templates["due_date_reminder"] = template.Must(template.New("due_date_reminder").Parse(`
<!DOCTYPE html>
<html>
<head><style>` + baseStyle + `
        .task { background: white; border-radius: 6px; padding: 12px; margin: 8px 0; }
        .priority-HIGH { color: #ef4444; }
        .priority-MEDIUM { color: #f59e0b; }
        .priority-LOW { color: #10b981; }
</style></head>
<body>
<div class="container">
    <div class="header"><h2>Overdue tasks</h2></div>
    <div class="content">
        <p>Hi {{.UserName}},</p>
        <p>The following tasks are past their due date:</p>
        {{range .Tasks}}
        <div class="task">
            <strong>{{.Title}}</strong>
            <span class="priority-{{.Priority}}">{{.Priority}}</span><br/>
            Due {{.DueDate}}
        </div>
        {{end}}
        <a href="{{.TasksURL}}" class="btn">Open my tasks</a>
    </div>
    <div class="footer">ORA Console</div>
</div>
</body>
</html>
`))

	return templates
}
