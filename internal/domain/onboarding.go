package domain

// OnboardingQuizID identifies the built-in onboarding quiz.
const OnboardingQuizID = "onboarding"

var knowledgeLevels = []Option{
	{Value: "beginner", Label: "Beginner - I know very little about this field"},
	{Value: "some", Label: "Some knowledge - I have basic understanding"},
	{Value: "moderate", Label: "Moderate - I have researched this field"},
	{Value: "advanced", Label: "Advanced - I have significant knowledge"},
}

var schoolSubjects = []Option{
	{Value: "math", Label: "Mathematics"},
	{Value: "science", Label: "Science"},
	{Value: "english", Label: "English/Literature"},
	{Value: "history", Label: "History"},
	{Value: "art", Label: "Art"},
	{Value: "music", Label: "Music"},
	{Value: "pe", Label: "Physical Education"},
	{Value: "computer", Label: "Computer Science"},
	{Value: "foreign-language", Label: "Foreign Language"},
	{Value: "business", Label: "Business Studies"},
}

// OnboardingQuiz returns the built-in onboarding sequence. The first step
// collects the role; only students continue past it.
func OnboardingQuiz() Quiz {
	return Quiz{
		ID: OnboardingQuizID,
		Steps: []QuizStep{
			{
				ID:     "user-type",
				Title:  "Welcome! Let's get started",
				Prompt: "Are you a...?",
				Kind:   KindSingleChoice,
				Options: []Option{
					{Value: "student", Label: "Student"},
					{Value: "counselor", Label: "Counselor"},
					{Value: "teacher", Label: "Teacher"},
					{Value: "parent", Label: "Parent"},
				},
			},
			{
				ID:            "enjoyed-subjects",
				Title:         "Tell us about your interests",
				Prompt:        "Select 2 classes/subjects that you have enjoyed in school:",
				Kind:          KindMultiChoice,
				MaxSelections: 2,
				Options:       schoolSubjects,
			},
			{
				ID:            "disliked-subjects",
				Title:         "Understanding your preferences",
				Prompt:        "Select 2 classes/subjects that you didn't enjoy in school:",
				Kind:          KindMultiChoice,
				MaxSelections: 2,
				Options:       schoolSubjects,
			},
			{
				ID:            "extracurriculars",
				Title:         "Your activities and hobbies",
				Prompt:        "Select three extracurriculars that interest you:",
				Kind:          KindMultiChoice,
				MaxSelections: 3,
				Options: []Option{
					{Value: "sports", Label: "Sports Teams"},
					{Value: "debate", Label: "Debate Club"},
					{Value: "drama", Label: "Drama/Theater"},
					{Value: "music-band", Label: "Band/Orchestra"},
					{Value: "student-gov", Label: "Student Government"},
					{Value: "volunteer", Label: "Volunteer Work"},
					{Value: "coding", Label: "Coding/Programming"},
					{Value: "photography", Label: "Photography"},
					{Value: "writing", Label: "Creative Writing"},
					{Value: "robotics", Label: "Robotics Club"},
				},
			},
			{
				ID:            "career-interests",
				Title:         "Career exploration",
				Prompt:        "Select two careers/fields you are most interested in:",
				Kind:          KindMultiChoice,
				MaxSelections: 2,
				Options: []Option{
					{Value: "healthcare", Label: "Healthcare"},
					{Value: "technology", Label: "Technology"},
					{Value: "business", Label: "Business"},
					{Value: "education", Label: "Education"},
					{Value: "arts", Label: "Arts & Entertainment"},
					{Value: "engineering", Label: "Engineering"},
					{Value: "law", Label: "Law & Government"},
					{Value: "science", Label: "Science & Research"},
					{Value: "finance", Label: "Finance"},
					{Value: "marketing", Label: "Marketing & Communications"},
				},
			},
			{
				ID:      "career-knowledge-1",
				Title:   "Your current knowledge",
				Prompt:  "How would you describe your knowledge about the {{career-interests.1}} career you picked above?",
				Kind:    KindSingleChoice,
				Options: knowledgeLevels,
			},
			{
				ID:      "career-knowledge-2",
				Title:   "Your current knowledge",
				Prompt:  "How would you describe your knowledge about the {{career-interests.2}} career you picked above?",
				Kind:    KindSingleChoice,
				Options: knowledgeLevels,
			},
			{
				ID:          "exploration-methods",
				Title:       "Your exploration journey",
				Prompt:      "How have you learned more about careers? Share the steps you have taken to explore careers/fields you are interested in:",
				Kind:        KindFreeText,
				Placeholder: "Tell us about any research, conversations, experiences, or other ways you've explored careers...",
			},
		},
	}
}
