package livechat

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tenantdesk/internal/model"
)

func hidden(v bool) Visibility { return VisibilityFunc(func() bool { return v }) }

func TestPresentTenantMessageWhileHidden(t *testing.T) {
	n := &recordingNotifier{permission: PermissionGranted}
	p := NewPresenter(model.RoleAdmin, n, hidden(true))

	long := strings.Repeat("Протекает кран на кухне, ", 5)
	shown := p.Present([]model.Message{msg(1, 0, tenant, admin, long)})

	require.True(t, shown)
	require.Equal(t, 1, n.Count())
	assert.Equal(t, "Anna Petrova", n.titles[0])
	assert.LessOrEqual(t, utf8.RuneCountInString(n.bodies[0]), PreviewLimit)
	assert.True(t, strings.HasSuffix(n.bodies[0], "…"))
}

func TestPresentOneNotificationPerBatch(t *testing.T) {
	n := &recordingNotifier{permission: PermissionGranted}
	p := NewPresenter(model.RoleAdmin, n, hidden(true))

	p.Present([]model.Message{
		msg(1, time.Second, tenant, admin, "first"),
		msg(2, 3*time.Second, tenant, admin, "latest"),
		msg(3, 2*time.Second, tenant, admin, "middle"),
	})
	require.Equal(t, 1, n.Count())
	assert.Equal(t, "latest", n.bodies[0])
}

func TestPresentSkips(t *testing.T) {
	fromTenant := []model.Message{msg(1, 0, tenant, admin, "hi")}

	cases := []struct {
		name  string
		perm  Permission
		hide  bool
		batch []model.Message
	}{
		{"visible", PermissionGranted, false, fromTenant},
		{"permission default", PermissionDefault, true, fromTenant},
		{"permission denied", PermissionDenied, true, fromTenant},
		{"own message", PermissionGranted, true, []model.Message{msg(2, 0, admin, tenant, "echo")}},
		{"empty batch", PermissionGranted, true, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			n := &recordingNotifier{permission: tc.perm}
			p := NewPresenter(model.RoleAdmin, n, hidden(tc.hide))
			assert.False(t, p.Present(tc.batch))
			assert.Equal(t, 0, n.Count())
		})
	}
}

func TestPresentForTenantSide(t *testing.T) {
	n := &recordingNotifier{permission: PermissionGranted}
	p := NewPresenter(model.RoleTenant, n, hidden(true))

	assert.True(t, p.Present([]model.Message{msg(1, 0, admin, tenant, "Счёт за май готов")}))
	assert.Equal(t, "Property Office", n.titles[0])
}

func TestPreview(t *testing.T) {
	img := model.Message{Images: []string{"/api/files/a.png"}}
	assert.Equal(t, ImagePlaceholder, Preview(&img))

	short := model.Message{Content: "  ok  "}
	assert.Equal(t, "ok", Preview(&short))

	exact := model.Message{Content: strings.Repeat("я", PreviewLimit)}
	assert.Equal(t, exact.Content, Preview(&exact))

	over := model.Message{Content: strings.Repeat("я", PreviewLimit+1)}
	got := Preview(&over)
	assert.Equal(t, PreviewLimit, utf8.RuneCountInString(got))
	assert.Equal(t, strings.Repeat("я", PreviewLimit-1)+"…", got)
}
