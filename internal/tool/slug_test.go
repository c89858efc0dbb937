package tool

import (
	"strings"
	"testing"

	"github.com/hansolo-dev/hansolo/internal/gitrepo"
	"github.com/stretchr/testify/require"
)

func TestDeriveBranchName_Basic(t *testing.T) {
	require.Equal(t, "feature/add-user-authentication", DeriveBranchName("", "Add user authentication"))
	require.Equal(t, "hotfix/payment-bug", DeriveBranchName("hotfix", "Payment Bug!!"))
}

func TestDeriveBranchName_AlwaysValid(t *testing.T) {
	long := strings.Repeat("word ", 40)
	name := DeriveBranchName("feature", long)
	require.LessOrEqual(t, len(name), 80)
	require.True(t, gitrepo.ValidBranchName(name), "derived name %q must satisfy the branch name pattern", name)
}

func TestDeriveBranchName_EmptyDescription(t *testing.T) {
	name := DeriveBranchName("feature", "")
	require.True(t, gitrepo.ValidBranchName(name))
}
