package openspec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleTasks = `# Tasks

1. Set up the schema
- [x] Create the users table
- [ ] Add indexes

2) Build the API
* Wire up the handler
-

Notes that are not a bullet.
`

func TestParseTaskGroups(t *testing.T) {
	t.Parallel()

	groups := ParseTaskGroups(sampleTasks)
	require.Len(t, groups, 2)

	require.Equal(t, "Set up the schema", groups[0].Title)
	require.Equal(t, []string{"Create the users table", "Add indexes"}, groups[0].Steps)

	require.Equal(t, "Build the API", groups[1].Title)
	require.Equal(t, []string{"Wire up the handler"}, groups[1].Steps)
}

func TestParseTaskGroupsIgnoresBulletsBeforeFirstGroup(t *testing.T) {
	t.Parallel()

	groups := ParseTaskGroups("- stray bullet\n1. Real group\n- step one\n")
	require.Len(t, groups, 1)
	require.Equal(t, []string{"step one"}, groups[0].Steps)
}

func TestParseTaskGroupsEmptyContent(t *testing.T) {
	t.Parallel()

	require.Empty(t, ParseTaskGroups("just prose, no numbered items"))
}

const sampleSpec = `## Login

### Requirement: Users can sign in

#### Scenario: valid credentials
- GIVEN a registered user
- WHEN they submit valid credentials
- THEN a session is created
- AND the dashboard loads

### requirement: Sessions expire
- Unrelated bullet
`

func TestParseSpec(t *testing.T) {
	t.Parallel()

	requirements, steps := ParseSpec(sampleSpec)
	require.Equal(t, []string{"Users can sign in", "Sessions expire"}, requirements)
	require.Equal(t, []string{
		"GIVEN a registered user verified",
		"WHEN they submit valid credentials verified",
		"THEN a session is created verified",
		"AND the dashboard loads verified",
	}, steps)
}
