// Package users управляет локальными пользователями и группами.
package users

import (
	"context"
	"fmt"

	"sysconsole/internal/core"
	"sysconsole/internal/executor"
	"sysconsole/internal/platform"
	"sysconsole/internal/validate"
)

const component = "UserGroup"

// Module действия над пользователями и группами.
type Module struct {
	os      platform.Provider
	actions core.Actions
}

// New создает модуль для платформы p.
func New(p platform.Provider) *Module {
	m := &Module{os: p}
	m.actions.Add(core.ActionSpec{Name: "list-users", Title: "List users"}, m.listUsers)
	m.actions.Add(core.ActionSpec{Name: "add-user", Title: "Create user", Params: []string{"username", "password"}}, m.addUser)
	m.actions.Add(core.ActionSpec{Name: "delete-user", Title: "Delete user", Params: []string{"username", "confirm"}, Destructive: true}, m.deleteUser)
	m.actions.Add(core.ActionSpec{Name: "list-groups", Title: "List groups"}, m.listGroups)
	m.actions.Add(core.ActionSpec{Name: "add-group", Title: "Create group", Params: []string{"group"}}, m.addGroup)
	m.actions.Add(core.ActionSpec{Name: "delete-group", Title: "Delete group", Params: []string{"group", "confirm"}, Destructive: true}, m.deleteGroup)
	m.actions.Add(core.ActionSpec{Name: "add-to-group", Title: "Add user to group", Params: []string{"username", "group"}}, m.addToGroup)
	m.actions.Add(core.ActionSpec{Name: "remove-from-group", Title: "Remove user from group", Params: []string{"username", "group"}}, m.removeFromGroup)
	return m
}

func (m *Module) Name() string  { return "users" }
func (m *Module) Title() string { return "Users and groups" }

func (m *Module) Init(ctx context.Context) error { //nolint:revive // инициализация не требуется
	return nil
}

func (m *Module) Actions() []core.ActionSpec { return m.actions.Specs() }

func (m *Module) Execute(ctx context.Context, env *core.Env, action string, args []string) (core.Response, error) {
	return m.actions.Dispatch(ctx, env, action, args)
}

func (m *Module) listUsers(ctx context.Context, env *core.Env, _ []string) (core.Response, error) {
	return env.List(ctx, component, "List Users", m.os.ListUsers())
}

func (m *Module) listGroups(ctx context.Context, env *core.Env, _ []string) (core.Response, error) {
	return env.List(ctx, component, "List Groups", m.os.ListGroups())
}

func (m *Module) addUser(ctx context.Context, env *core.Env, args []string) (core.Response, error) {
	const action = "Create User"
	name, err := env.Arg(args, 0, "Username")
	if err == nil {
		err = validate.Name("username", name)
	}
	if err != nil {
		return env.Reject(component, action, err)
	}
	password, err := env.OptionalSecret(args, 1, "Password (leave empty for none)")
	if err == nil {
		err = validate.Password(password)
	}
	if err != nil {
		return env.Reject(component, action, err)
	}
	return env.Apply(ctx, component, action, m.os.AddUser(name, password),
		fmt.Sprintf("User '%s' created.", name))
}

func (m *Module) deleteUser(ctx context.Context, env *core.Env, args []string) (core.Response, error) {
	const action = "Delete User"
	name, err := env.Arg(args, 0, "Username to delete")
	if err == nil {
		err = validate.Name("username", name)
	}
	if err != nil {
		return env.Reject(component, action, err)
	}
	ok, err := env.Confirm(args, 1, fmt.Sprintf("Delete user '%s'?", name))
	if err != nil {
		return env.Reject(component, action, err)
	}
	if !ok {
		return env.Decline(component, action)
	}
	return env.Apply(ctx, component, action, []executor.Command{m.os.DeleteUser(name)},
		fmt.Sprintf("User '%s' deleted.", name))
}

func (m *Module) addGroup(ctx context.Context, env *core.Env, args []string) (core.Response, error) {
	const action = "Create Group"
	group, err := env.Arg(args, 0, "Group name")
	if err == nil {
		err = validate.Name("group", group)
	}
	if err != nil {
		return env.Reject(component, action, err)
	}
	return env.Apply(ctx, component, action, []executor.Command{m.os.AddGroup(group)},
		fmt.Sprintf("Group '%s' created.", group))
}

func (m *Module) deleteGroup(ctx context.Context, env *core.Env, args []string) (core.Response, error) {
	const action = "Delete Group"
	group, err := env.Arg(args, 0, "Group to delete")
	if err == nil {
		err = validate.Name("group", group)
	}
	if err != nil {
		return env.Reject(component, action, err)
	}
	ok, err := env.Confirm(args, 1, fmt.Sprintf("Delete group '%s'?", group))
	if err != nil {
		return env.Reject(component, action, err)
	}
	if !ok {
		return env.Decline(component, action)
	}
	return env.Apply(ctx, component, action, []executor.Command{m.os.DeleteGroup(group)},
		fmt.Sprintf("Group '%s' deleted.", group))
}

// membership читает пару пользователь/группа.
func membership(env *core.Env, args []string) (string, string, error) {
	user, err := env.Arg(args, 0, "Username")
	if err != nil {
		return "", "", err
	}
	if err := validate.Name("username", user); err != nil {
		return "", "", err
	}
	group, err := env.Arg(args, 1, "Group name")
	if err != nil {
		return "", "", err
	}
	if err := validate.Name("group", group); err != nil {
		return "", "", err
	}
	return user, group, nil
}

func (m *Module) addToGroup(ctx context.Context, env *core.Env, args []string) (core.Response, error) {
	const action = "Add User to Group"
	user, group, err := membership(env, args)
	if err != nil {
		return env.Reject(component, action, err)
	}
	return env.Apply(ctx, component, action, []executor.Command{m.os.AddToGroup(user, group)},
		fmt.Sprintf("User '%s' added to group '%s'.", user, group))
}

func (m *Module) removeFromGroup(ctx context.Context, env *core.Env, args []string) (core.Response, error) {
	const action = "Remove User from Group"
	user, group, err := membership(env, args)
	if err != nil {
		return env.Reject(component, action, err)
	}
	return env.Apply(ctx, component, action, []executor.Command{m.os.RemoveFromGroup(user, group)},
		fmt.Sprintf("User '%s' removed from group '%s'.", user, group))
}
